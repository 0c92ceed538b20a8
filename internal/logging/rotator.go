package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileRotator is an io.Writer that rotates its file by size and by day.
type FileRotator struct {
	config *Config
	now    func() time.Time

	mu     sync.Mutex
	file   *os.File
	size   int64
	opened time.Time
}

// NewFileRotator opens cfg.FilePath for appending, creating its directory.
func NewFileRotator(cfg *Config) (*FileRotator, error) {
	r := &FileRotator{config: cfg, now: time.Now}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRotator) open() error {
	file, err := os.OpenFile(r.config.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.file = file
	r.size = info.Size()
	r.opened = r.now()
	return nil
}

// Write implements io.Writer.
func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	if r.due(int64(len(p))) {
		if err := r.rotateLocked(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *FileRotator) due(next int64) bool {
	if r.config.MaxSize > 0 && r.size > 0 && r.size+next > r.config.MaxSize*1024*1024 {
		return true
	}
	now := r.now()
	return now.YearDay() != r.opened.YearDay() || now.Year() != r.opened.Year()
}

// Rotate moves the current file aside and starts a new one.
func (r *FileRotator) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rotateLocked()
}

func (r *FileRotator) rotateLocked() error {
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("close current log: %w", err)
		}
		r.file = nil
	}

	dir, name, ext := r.parts()
	rotated := filepath.Join(dir, fmt.Sprintf("%s-%s%s", name, r.now().Format("20060102-150405.000"), ext))
	if err := os.Rename(r.config.FilePath, rotated); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}
	if r.config.Compress {
		if err := gzipFile(rotated); err != nil {
			return err
		}
	}
	if err := r.open(); err != nil {
		return err
	}
	r.prune()
	return nil
}

func (r *FileRotator) parts() (dir, name, ext string) {
	base := filepath.Base(r.config.FilePath)
	ext = filepath.Ext(base)
	return filepath.Dir(r.config.FilePath), strings.TrimSuffix(base, ext), ext
}

// backups returns rotated files, oldest first.
func (r *FileRotator) backups() []string {
	dir, name, ext := r.parts()
	matches, err := filepath.Glob(filepath.Join(dir, name+"-*"+ext+"*"))
	if err != nil {
		return nil
	}
	type aged struct {
		path string
		mod  time.Time
	}
	files := make([]aged, 0, len(matches))
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil {
			files = append(files, aged{m, info.ModTime()})
		}
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].mod.Equal(files[j].mod) {
			return files[i].path < files[j].path
		}
		return files[i].mod.Before(files[j].mod)
	})
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out
}

// prune enforces MaxBackups and MaxAge.
func (r *FileRotator) prune() {
	files := r.backups()
	if r.config.MaxBackups > 0 && len(files) > r.config.MaxBackups {
		for _, f := range files[:len(files)-r.config.MaxBackups] {
			os.Remove(f)
		}
		files = files[len(files)-r.config.MaxBackups:]
	}
	if r.config.MaxAge <= 0 {
		return
	}
	cutoff := r.now().AddDate(0, 0, -r.config.MaxAge)
	for _, f := range files {
		if info, err := os.Stat(f); err == nil && info.ModTime().Before(cutoff) {
			os.Remove(f)
		}
	}
}

func gzipFile(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("compress log: %w", err)
	}
	defer in.Close()

	out, err := os.Create(path + ".gz")
	if err != nil {
		return fmt.Errorf("compress log: %w", err)
	}
	gz := gzip.NewWriter(out)
	gz.Name = filepath.Base(path)

	_, err = io.Copy(gz, in)
	if cerr := gz.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path + ".gz")
		return fmt.Errorf("compress log: %w", err)
	}
	return os.Remove(path)
}

// Close closes the underlying file.
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

// Sync flushes the file to disk.
func (r *FileRotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return r.file.Sync()
	}
	return nil
}

// LogFiles returns the current log file followed by its backups.
func (r *FileRotator) LogFiles() []string {
	return append([]string{r.config.FilePath}, r.backups()...)
}
