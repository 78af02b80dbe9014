package netsuke

import (
	"bufio"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"os"
	"runtime"
	"strings"
)

// fileExpanduser implements `expanduser`: expands a leading "~" using
// HOME/USERPROFILE (Unix) or the documented Windows fallback chain.
// "~user" is explicitly unsupported (spec.md §4.5.2).
func fileExpanduser(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	if len(p) > 1 && p[1] != '/' && p[1] != '\\' {
		return "", &StdlibError{Kind: StdlibIO, Helper: "expanduser", Operation: "expand", Path: p,
			Err: fmt.Errorf("~user is not supported")}
	}
	home, err := homeDir()
	if err != nil {
		return "", &StdlibError{Kind: StdlibIO, Helper: "expanduser", Operation: "expand", Path: p, Err: err}
	}
	return home + p[1:], nil
}

func homeDir() (string, error) {
	if runtime.GOOS == "windows" {
		if h, ok := os.LookupEnv("HOME"); ok && h != "" {
			return h, nil
		}
		if h, ok := os.LookupEnv("USERPROFILE"); ok && h != "" {
			return h, nil
		}
		drive, path := os.Getenv("HOMEDRIVE"), os.Getenv("HOMEPATH")
		if drive != "" && path != "" {
			return drive + path, nil
		}
		if h, ok := os.LookupEnv("HOMESHARE"); ok && h != "" {
			return h, nil
		}
		return "", fmt.Errorf("no HOME, USERPROFILE, HOMEDRIVE+HOMEPATH, or HOMESHARE set")
	}
	if h, ok := os.LookupEnv("HOME"); ok && h != "" {
		return h, nil
	}
	if h, ok := os.LookupEnv("USERPROFILE"); ok && h != "" {
		return h, nil
	}
	return "", fmt.Errorf("HOME is not set")
}

// fileSize implements `size`: byte length of the file at p.
func (e *Env) fileSize(p string) (int64, error) {
	e.markImpure()
	info, err := os.Stat(p)
	if err != nil {
		return 0, &StdlibError{Kind: StdlibIO, Helper: "size", Operation: "stat", Path: p, Err: err}
	}
	return info.Size(), nil
}

// fileContents implements `contents(encoding="utf-8")`: reads the named
// file as text. Any encoding other than utf-8/utf8 is rejected.
func (e *Env) fileContents(p string, encoding string) (string, error) {
	e.markImpure()
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
	default:
		return "", &StdlibError{Kind: StdlibIO, Helper: "contents", Operation: "read", Path: p,
			Err: fmt.Errorf("unsupported encoding %q: only utf-8 is supported", encoding)}
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", &StdlibError{Kind: StdlibIO, Helper: "contents", Operation: "read", Path: p, Err: err}
	}
	return string(data), nil
}

// fileLinecount implements `linecount`: the number of lines in a UTF-8
// file, counting trailing content without a final newline as one line.
func (e *Env) fileLinecount(p string) (int, error) {
	e.markImpure()
	f, err := os.Open(p)
	if err != nil {
		return 0, &StdlibError{Kind: StdlibIO, Helper: "linecount", Operation: "open", Path: p, Err: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	count := 0
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, &StdlibError{Kind: StdlibIO, Helper: "linecount", Operation: "read", Path: p, Err: err}
	}
	return count, nil
}

// fileHash implements `hash(algorithm)`: full hex digest of a file,
// streamed rather than buffered whole.
func (e *Env) fileHash(p, algorithm string) (string, error) {
	sum, err := e.fileDigest(p, -1, algorithm)
	return sum, err
}

// fileDigest implements `digest(len, algorithm)`: a possibly-truncated hex
// digest. sha256 and sha512 are always available; sha1 and md5 require the
// legacyDigests opt-in and otherwise fail with a pointed message.
func (e *Env) fileDigest(p string, length int, algorithm string) (string, error) {
	e.markImpure()
	h, err := newHasher(algorithm, e.legacyDigests)
	if err != nil {
		return "", &StdlibError{Kind: StdlibIO, Helper: "digest", Operation: "select algorithm", Path: p, Err: err}
	}
	f, err := os.Open(p)
	if err != nil {
		return "", &StdlibError{Kind: StdlibIO, Helper: "digest", Operation: "open", Path: p, Err: err}
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return "", &StdlibError{Kind: StdlibIO, Helper: "digest", Operation: "read", Path: p, Err: err}
	}
	sum := fmt.Sprintf("%x", h.Sum(nil))
	if length > 0 && length < len(sum) {
		sum = sum[:length]
	}
	return sum, nil
}

func newHasher(algorithm string, legacyEnabled bool) (hash.Hash, error) {
	switch strings.ToLower(algorithm) {
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	case "sha1":
		if !legacyEnabled {
			return nil, fmt.Errorf("sha1: enable legacy digests")
		}
		return sha1.New(), nil
	case "md5":
		if !legacyEnabled {
			return nil, fmt.Errorf("md5: enable legacy digests")
		}
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", algorithm)
	}
}
