package dataset

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/tabloom-cli/internal/errors"
	"github.com/KaramelBytes/tabloom-cli/internal/utils"
)

// Store keeps uploaded dataset files in a single directory, addressed by base name.
type Store struct {
	dir      string
	maxBytes int64
}

// NewStore creates the directory if needed. maxBytes <= 0 disables the size limit.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", dir)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string { return s.dir }

// Save writes r under name, replacing any previous file with that name.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	st, err := s.Stage(name, r)
	if err != nil {
		return "", err
	}
	return st.Commit()
}

// Stage writes r to a private staging directory so it can be checked before it
// replaces a stored file of the same name. The caller must Commit or Discard it.
func (s *Store) Stage(name string, r io.Reader) (*Staged, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if !Supported(clean) {
		return nil, errors.Validationf("unsupported format %q (use .csv, .tsv or .xlsx)", filepath.Ext(clean))
	}
	root := filepath.Join(s.dir, stagingDir)
	if err := utils.EnsureDir(root); err != nil {
		return nil, errors.Wrap(err, "create staging dir")
	}
	tmp, err := os.MkdirTemp(root, "upload-")
	if err != nil {
		return nil, errors.Wrap(err, "create staging dir")
	}
	st := &Staged{name: clean, dir: tmp, dest: filepath.Join(s.dir, clean)}
	if _, err := utils.SafeCopyFile(st.Path(), r, s.maxBytes); err != nil {
		_ = st.Discard()
		if errors.Is(err, utils.ErrTooLarge) {
			return nil, errors.Validationf("file %q exceeds the %d byte upload limit", clean, s.maxBytes)
		}
		return nil, errors.Wrapf(err, "save %s", clean)
	}
	return st, nil
}

// stagingDir holds uploads that have not been committed yet. List skips it.
const stagingDir = ".staging"

// Staged is an upload written to disk but not yet visible in the store.
type Staged struct {
	name string
	dir  string
	dest string
}

// Path is the staged file. Its base name is the final file name.
func (st *Staged) Path() string { return filepath.Join(st.dir, st.name) }

// Commit moves the staged file into the store and returns its final path.
func (st *Staged) Commit() (string, error) {
	if err := os.Rename(st.Path(), st.dest); err != nil {
		_ = st.Discard()
		return "", errors.Wrapf(err, "save %s", st.name)
	}
	_ = os.RemoveAll(st.dir)
	return st.dest, nil
}

// Discard drops the staged file. A stored file with the same name is untouched.
func (st *Staged) Discard() error {
	if err := os.RemoveAll(st.dir); err != nil {
		return errors.Wrapf(err, "discard %s", st.name)
	}
	return nil
}

// Path returns the on-disk path of a stored file.
func (s *Store) Path(name string) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, clean)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", errors.WithHint(errors.NotFoundf("file %q not found", clean), "upload it first")
		}
		return "", errors.Wrapf(err, "stat %s", clean)
	}
	return path, nil
}

// Open loads a stored file into a Dataset.
func (s *Store) Open(name string, opt Options) (*Dataset, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	return Load(path, opt)
}

// List returns stored file names sorted alphabetically.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "read data dir")
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func cleanName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", errors.Validationf("filename is required")
	}
	if strings.ContainsAny(n, `/\`) || n == "." || n == ".." || filepath.Base(n) != n {
		return "", errors.Validationf("invalid filename %q", name)
	}
	return n, nil
}
