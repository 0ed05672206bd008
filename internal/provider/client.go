package provider

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/studio-b12/gowebdav"

	"storageverifier/internal/pathuri"
)

// ErrExists is returned when a move target already holds a document of the
// same name.
var ErrExists = errors.New("document already exists")

// maxCollisions bounds the "name (n).ext" search of Create and Rename.
const maxCollisions = 32

type Config struct {
	URL     string
	User    string
	Pass    string
	Timeout time.Duration
}

// Client reaches the document provider. Documents are addressed by their
// volume-relative path ("Download/a.txt").
type Client struct {
	dav *gowebdav.Client
	url string
	log logrus.FieldLogger
}

func NewClient(cfg Config, log logrus.FieldLogger) *Client {
	c := gowebdav.NewClient(cfg.URL, cfg.User, cfg.Pass)

	t := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: time.Minute,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 10 * time.Second,
	}
	c.SetTransport(t)
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}

	return &Client{
		dav: c,
		url: cfg.URL,
		log: log,
	}
}

// SetTransport sets the HTTP transport (used by tests).
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.dav.SetTransport(rt)
}

func davPath(rel string) string {
	return "/" + strings.TrimPrefix(rel, "/")
}

func translate(op, rel string, err error) error {
	if err == nil {
		return nil
	}
	if gowebdav.IsErrNotFound(err) {
		return &fs.PathError{Op: op, Path: rel, Err: fs.ErrNotExist}
	}
	return fmt.Errorf("provider %s %s: %w", op, rel, err)
}

// Stat returns the metadata of a document.
func (c *Client) Stat(rel string) (os.FileInfo, error) {
	fi, err := c.dav.Stat(davPath(rel))
	if err != nil {
		return nil, translate("stat", rel, err)
	}
	return fi, nil
}

// Exists reports whether a document exists.
func (c *Client) Exists(rel string) (bool, error) {
	_, err := c.Stat(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Open returns the content of a document; the caller closes it.
func (c *Client) Open(rel string) (io.ReadCloser, error) {
	rc, err := c.dav.ReadStream(davPath(rel))
	if err != nil {
		return nil, translate("open", rel, err)
	}
	return rc, nil
}

// Write replaces the content of a document.
func (c *Client) Write(rel string, data []byte) error {
	c.log.WithFields(logrus.Fields{"document": rel, "size": humanize.Bytes(uint64(len(data)))}).Debug("provider write")
	if err := c.dav.WriteStream(davPath(rel), bytes.NewReader(data), 0644); err != nil {
		return translate("write", rel, err)
	}
	return nil
}

func (c *Client) requireDir(rel string) error {
	fi, err := c.Stat(rel)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("provider: %s is not a directory", rel)
	}
	return nil
}

// freeName returns the first collision alternative of name that does not
// exist in dir.
func (c *Client) freeName(dirRel, name string) (string, error) {
	for n := 0; n < maxCollisions; n++ {
		candidate := pathuri.NumberedName(name, n)
		exists, err := c.Exists(path.Join(dirRel, candidate))
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("provider: no free name for %s in %s", name, dirRel)
}

// Create makes an empty document named name in dirRel and returns its
// path. A name that is taken is replaced by "name (n).ext".
func (c *Client) Create(dirRel, name string) (string, error) {
	if err := c.requireDir(dirRel); err != nil {
		return "", err
	}
	free, err := c.freeName(dirRel, name)
	if err != nil {
		return "", err
	}
	rel := path.Join(dirRel, free)
	if free != name {
		c.log.WithFields(logrus.Fields{"requested": name, "created": free}).Info("provider renamed new document")
	}
	if err := c.dav.Write(davPath(rel), nil, 0644); err != nil {
		return "", translate("create", rel, err)
	}
	return rel, nil
}

// Delete removes a document.
func (c *Client) Delete(rel string) error {
	if _, err := c.Stat(rel); err != nil {
		return err
	}
	return translate("delete", rel, c.dav.Remove(davPath(rel)))
}

// Rename gives a document a new display name within its folder and returns
// the new path. Like Create it picks a free alternative on collision.
func (c *Client) Rename(rel, newName string) (string, error) {
	if strings.Contains(newName, "/") {
		return "", fmt.Errorf("provider: invalid display name %q", newName)
	}
	if _, err := c.Stat(rel); err != nil {
		return "", err
	}
	dir := path.Dir(rel)
	if path.Base(rel) == newName {
		return rel, nil
	}
	free, err := c.freeName(dir, newName)
	if err != nil {
		return "", err
	}
	target := path.Join(dir, free)
	if err := c.dav.Rename(davPath(rel), davPath(target), false); err != nil {
		return "", translate("rename", rel, err)
	}
	return target, nil
}

// Move moves a document into dirRel, keeping its name.
func (c *Client) Move(rel, dirRel string) (string, error) {
	if _, err := c.Stat(rel); err != nil {
		return "", err
	}
	if err := c.requireDir(dirRel); err != nil {
		return "", err
	}
	target := path.Join(dirRel, path.Base(rel))
	exists, err := c.Exists(target)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("%w: %s", ErrExists, target)
	}
	if err := c.dav.Rename(davPath(rel), davPath(target), false); err != nil {
		return "", translate("move", rel, err)
	}
	return target, nil
}
