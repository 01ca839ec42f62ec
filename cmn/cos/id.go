package cos

import (
	"github.com/teris-io/shortid"
)

// idABC mirrors the teacher's own alphabet substitution: a permutation of
// shortid.DefaultABC that avoids characters awkward inside the textual
// container format's escaping rules ('[', ']', ';').
const idABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

// gen is a dedicated short-id generator; the package-level shortid.Generate
// uses a shared default instance that isn't meant for the rate the pipeline
// and session layers need (one id per send, per indication), so msgline
// seeds its own like the teacher seeds its uuid alphabet.
var gen *shortid.Shortid

func init() {
	gen = shortid.MustNew(4 /*worker*/, idABC, 0xa5a5)
}

// GenID returns a short, URL-safe, session/indication-scoped identifier.
func GenID() string {
	id, err := gen.Generate()
	if err != nil {
		// shortid only errors on a misconfigured generator; ours is fixed at init.
		panic(err)
	}
	return id
}
