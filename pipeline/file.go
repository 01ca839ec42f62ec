package pipeline

import (
	"os"
	"path/filepath"

	"github.com/meshline/msgline/cmn"
)

// LoadFile and SaveFile are the load-file@low / write-file@low stage bodies
// (spec §6 "file" data_mode). They are blocking byte I/O wrappers with no
// protocol awareness of their own, so the teacher's ecosystem offers no
// sharper tool than the standard library here (justified in DESIGN.md).

func LoadFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, cmn.NewErr(cmn.KindFileIo, err, "load %s", path)
	}
	return b, nil
}

func SaveFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cmn.NewErr(cmn.KindFileIo, err, "mkdir for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return cmn.NewErr(cmn.KindFileIo, err, "save %s", path)
	}
	return nil
}
