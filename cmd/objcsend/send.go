package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/objcsend/config"
	"github.com/chazu/objcsend/objc"
	"github.com/chazu/objcsend/trace"
)

// loadConfig reads path, or the nearest objcsend.toml above the working
// directory, or falls back to the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

func sendCommand(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (default: nearest "+config.FileName+")")
	ret := fs.String("ret", "id", "Return type: void, bool, i32, i64, u32, u64, f32, f64, id, class, sel, string")
	superName := fs.String("super", "", "Send to the superclass implementation starting at this class")
	unchecked := fs.Bool("unchecked", false, "Do not intercept Objective-C exceptions")
	tracePath := fs.String("trace", "", "Record the send as CBOR to this file")
	verbosity := fs.Int("v", 0, "Log verbosity (-4..2)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: objcsend send [options] RECEIVER SELECTOR [ARG...]\n\n")
		fmt.Fprintf(os.Stderr, "RECEIVER is a class name or an 0x object address.\n")
		fmt.Fprintf(os.Stderr, "Each ARG is kind:value with kind one of\n")
		fmt.Fprintf(os.Stderr, "  bool i8 i16 i32 i64 int u8 u16 u32 u64 uint ptr f32 f64 sel class id\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if fs.NArg() < 2 {
		fs.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	flagSet := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { flagSet[f.Name] = true })
	if flagSet["v"] {
		cfg.Log.Verbosity = *verbosity
	}
	if flagSet["trace"] {
		cfg.Trace.Path = *tracePath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	commonlog.Configure(cfg.Log.Verbosity, cfg.LogFile())
	if cfg.Path != "" {
		log.Debugf("using config %s", cfg.Path)
	}

	backend, err := openBackend(cfg)
	if err != nil {
		return err
	}
	opts := []objc.Option{objc.WithForceChecked(cfg.Dispatch.ForceChecked)}
	if cfg.Trace.Path != "" {
		rec, err := trace.Create(cfg.Trace.Path)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Errorf("%s", err)
			}
		}()
		opts = append(opts, objc.WithObserver(rec))
	}
	rt, err := objc.New(backend, opts...)
	if err != nil {
		return err
	}

	out, err := send(rt, fs.Arg(0), fs.Arg(1), fs.Args()[2:], *ret, *superName, !*unchecked)
	if err != nil {
		var exc *objc.Exception
		if errors.As(err, &exc) {
			defer exc.Release()
			return fmt.Errorf("%s raised %#v: %s", fs.Arg(1), exc, exc)
		}
		return err
	}
	if out != "" {
		fmt.Println(out)
	}
	return nil
}

// send parses the command line operands and performs the send.
func send(rt *objc.Runtime, receiver, selector string, rawArgs []string, ret, superName string, checked bool) (string, error) {
	target, err := parseReceiver(rt, receiver)
	if err != nil {
		return "", err
	}
	sel, ok := rt.Selector(selector)
	if !ok {
		return "", fmt.Errorf("invalid selector %q", selector)
	}
	var super objc.Class
	if superName != "" {
		if super, ok = rt.Class(superName); !ok {
			return "", fmt.Errorf("no class named %q", superName)
		}
	}
	args := make([]any, len(rawArgs))
	for i, raw := range rawArgs {
		if args[i], err = parseArg(rt, raw); err != nil {
			return "", err
		}
	}
	do, err := newSender(ret, super, checked)
	if err != nil {
		return "", err
	}
	return do(rt, target, sel, args)
}
