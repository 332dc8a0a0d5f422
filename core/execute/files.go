package execute

import (
	"os"

	"github.com/josephlewis42/bsh/core/ir"
)

// fileSet opens each redirect target once per command so streams pointing at
// the same file share an offset.
type fileSet struct {
	files map[string]*os.File
}

func (s *fileSet) open(intent ir.Stdio, write bool) (*os.File, error) {
	key := "r:" + intent.Path
	flags := os.O_RDONLY
	if write {
		key = "w:" + intent.Path
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if intent.Append {
			flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		}
	}

	if f, ok := s.files[key]; ok {
		return f, nil
	}

	f, err := os.OpenFile(intent.Path, flags, 0666)
	if err != nil {
		return nil, err
	}
	if s.files == nil {
		s.files = make(map[string]*os.File)
	}
	s.files[key] = f
	return f, nil
}

// Close closes every opened file. Children keep their own copies.
func (s *fileSet) Close() {
	for key, f := range s.files {
		f.Close()
		delete(s.files, key)
	}
}
