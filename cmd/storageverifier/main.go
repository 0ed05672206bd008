// Command storageverifier runs one storage operation through a chosen
// backend combination and prints the feedback report.
//
//	storageverifier --action CREATE_FILE --api direct --path /tmp/f.txt --data hello
//	storageverifier --action MOVE_FILE --api media-store@content-resolver@io-stream \
//	    --path /sdcard/Download/a.jpg --move-to /sdcard/Pictures/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"storageverifier/internal/backend"
	"storageverifier/internal/catalog"
	"storageverifier/internal/cloud"
	"storageverifier/internal/config"
	"storageverifier/internal/pathuri"
	"storageverifier/internal/picker"
	"storageverifier/internal/platform"
	"storageverifier/internal/provider"
	"storageverifier/internal/report"
	"storageverifier/internal/verifier"
)

// Exit codes.
const (
	exitOK       = 0
	exitInternal = 1
	exitUsage    = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	action     string
	api        string
	path       string
	moveTo     string
	data       string
	hasData    bool
	configPath string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var o options
	fs := pflag.NewFlagSet("storageverifier", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.action, "action", "", "Operation tag: READ_FILE, CREATE_FILE, DELETE_FILE, RENAME_FILE, MOVE_FILE, OVERWRITE_FILE")
	fs.StringVar(&o.api, "api", "", "Backend selector: <name> or <locate>@<manage>@<access>")
	fs.StringVar(&o.path, "path", "", "Target path")
	fs.StringVar(&o.moveTo, "move-to", "", "New path of a rename, destination folder of a move")
	fs.StringVar(&o.data, "data", "", "Content to write; prefix with Base64: for binary content")
	fs.StringVar(&o.configPath, "config", "config.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.hasData = fs.Changed("data")
	if o.action == "" || o.api == "" || o.path == "" {
		return nil, errors.New("--action, --api and --path are required")
	}
	return &o, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return exitUsage
	}
	log, err := newLogger(cfg.Log, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid log config: %v\n", err)
		return exitUsage
	}

	out, closeOut, err := reportWriter(cfg.Report, stdout)
	if err != nil {
		log.WithError(err).Error("Failed to open report output")
		return exitInternal
	}
	defer closeOut()
	emitter := report.NewEmitter(out, log)
	fail := func(code int, err error) int {
		fb := report.Feedback{Target: opts.path, Action: opts.action, Success: backend.Exception(err)}
		if eerr := emitter.Emit(fb); eerr != nil {
			log.WithError(eerr).Error("Failed to emit feedback")
		}
		return code
	}

	action, err := verifier.ParseAction(opts.action)
	if err != nil {
		return fail(exitUsage, err)
	}
	d := verifier.Descriptor{
		Action:    action,
		Selector:  opts.api,
		Target:    opts.path,
		Secondary: opts.moveTo,
	}
	if opts.hasData {
		d.Payload = &opts.data
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pc, cleanup, err := setup(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to set up platform")
		return fail(exitInternal, err)
	}
	defer cleanup()

	fb, err := verifier.New(pc).Run(ctx, d)
	if eerr := emitter.Emit(fb); eerr != nil {
		log.WithError(eerr).Error("Failed to emit feedback")
		return exitInternal
	}
	if verifier.IsResolutionError(err) {
		return exitUsage
	}
	return exitOK
}

func newLogger(cfg config.LogConfig, w io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)
	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return log, nil
}

// reportWriter returns stdout, teed into the configured output file.
func reportWriter(cfg config.ReportConfig, stdout io.Writer) (io.Writer, func(), error) {
	if cfg.Output == "" {
		return stdout, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0755); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(cfg.Output)
	if err != nil {
		return nil, nil, err
	}
	return io.MultiWriter(stdout, f), func() { f.Close() }, nil
}

// setup builds the platform context: the volume, its catalog, the document
// provider (served locally unless an external one is configured), the
// optional cloud root and the picker broker.
func setup(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*platform.Context, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	vol := platform.Volume{Root: cfg.Volume.Root}
	if err := vol.Prepare(); err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Catalog.Path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}
	cat, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, func() { cat.Close() })

	providerURL := cfg.Provider.URL
	if providerURL == "" {
		addr, stop, err := serve(cfg.Provider.Listen, provider.NewServer(vol.Root, cfg.Provider.Auth.User, cfg.Provider.Auth.Pass, log), log)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to start document provider: %w", err)
		}
		closers = append(closers, stop)
		providerURL = "http://" + addr
		log.WithField("url", providerURL).Debug("Document provider listening")
	}
	prov := provider.NewClient(provider.Config{
		URL:  providerURL,
		User: cfg.Provider.Auth.User,
		Pass: cfg.Provider.Auth.Pass,
	}, log)

	var root *cloud.Root
	if cfg.HasCloud() {
		root, err = cloud.Open(ctx, cloud.Config{
			Endpoint:  cfg.Cloud.Endpoint,
			Region:    cfg.Cloud.Region,
			Bucket:    cfg.Cloud.Bucket,
			AccessKey: cfg.Cloud.AccessKey,
			SecretKey: cfg.Cloud.SecretKey,
			UseSSL:    cfg.Cloud.UseSSL,
		}, log)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	broker := picker.NewBroker(log)
	addr, stop, err := serve(cfg.Picker.Listen, broker, log)
	if err != nil {
		// picker requests time out without the broker; other routes work
		log.WithError(err).Warn("Picker broker unavailable")
	} else {
		closers = append(closers, stop)
		log.WithField("addr", addr).Info("Picker broker listening")
	}

	pc := &platform.Context{
		Volume:        vol,
		Catalog:       cat,
		Paths:         pathuri.NewTranslator(cat),
		Provider:      prov,
		Cloud:         root,
		Picker:        broker,
		PickerTimeout: cfg.Picker.Timeout,
		Package:       cfg.App.Package,
		Grants:        cfg.App.Grants,
		Log:           log,
	}
	return pc, cleanup, nil
}

// serve runs h on addr until the returned stop func is called.
func serve(addr string, h http.Handler, log logrus.FieldLogger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Server failed")
		}
	}()
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
	return ln.Addr().String(), stop, nil
}
