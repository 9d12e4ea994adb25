// Command sdlxfer moves one file between two lab devices using the
// newline-framed transfer protocol.
//
// Send a file:
//
//	sdlxfer -mode send -file results.csv -host 10.0.0.7 -config sdlkit.toml
//
// Receive one file and exit:
//
//	sdlxfer -mode recv -out /data/incoming -config sdlkit.toml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/sdlkit"
	"github.com/opd-ai/sdlkit/config"
	"github.com/opd-ai/sdlkit/logger"
	"github.com/opd-ai/sdlkit/retry"
	"github.com/opd-ai/sdlkit/socket"
)

func main() {
	var (
		mode       = flag.String("mode", "", "send or recv")
		configPath = flag.String("config", "", "path to TOML config (optional)")
		filePath   = flag.String("file", "", "file to send (send mode)")
		outDir     = flag.String("out", ".", "directory for received files (recv mode)")
		host       = flag.String("host", "", "peer host (overrides config)")
		port       = flag.Int("port", 0, "peer or listen port (overrides config)")
	)
	flag.Parse()

	if err := run(*mode, *configPath, *filePath, *outDir, *host, *port); err != nil {
		fmt.Fprintf(os.Stderr, "sdlxfer: %v\n", err)
		os.Exit(1)
	}
}

func run(mode, configPath, filePath, outDir, host string, port int) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if host != "" {
		cfg.Transfer.Host = host
	}
	if port != 0 {
		cfg.Transfer.Port = port
		cfg.Transfer.ListenPort = port
	}

	log, err := logger.New(cfg.Log.Name, logger.Options{Dir: cfg.Log.Dir})
	if err != nil {
		return err
	}
	// Route the library's structured logs into the same file.
	logrus.SetOutput(log.Out)
	logrus.SetLevel(log.GetLevel())

	opts := sdlkit.NewOptions()
	opts.ConnectTimeout = cfg.Transfer.ConnectTimeout()
	opts.ReadTimeout = cfg.Transfer.ReadTimeout()
	opts.ChunkSize = cfg.Transfer.ChunkSize

	switch mode {
	case "send":
		return runSend(cfg, opts, filePath, log)
	case "recv":
		return runRecv(cfg, opts, outDir, log)
	default:
		return fmt.Errorf("unknown mode %q: want send or recv", mode)
	}
}

func runSend(cfg config.Config, opts *sdlkit.Options, filePath string, log *logrus.Logger) error {
	if filePath == "" {
		return fmt.Errorf("send mode requires -file")
	}
	if cfg.Transfer.Host == "" {
		return fmt.Errorf("send mode requires a peer host")
	}

	body, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	name := filepath.Base(filePath)

	// Retry covers the whole connect-through-transfer sequence; a
	// partially sent header cannot be resumed.
	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Delay:       cfg.Retry.Delay(),
	}
	err = policy.Do(context.Background(), func() error {
		return sdlkit.SendFile(context.Background(), cfg.Transfer.Host, cfg.Transfer.Port, name, body, opts)
	})
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"function":  "runSend",
		"file_name": name,
		"file_size": len(body),
		"peer":      cfg.Transfer.Host,
	}).Info("File sent")
	return nil
}

func runRecv(cfg config.Config, opts *sdlkit.Options, outDir string, log *logrus.Logger) error {
	ln, err := socket.Listen(cfg.Transfer.ListenPort)
	if err != nil {
		return err
	}
	defer ln.Close()

	name, body, err := sdlkit.ServeOnce(ln, opts)
	if err != nil {
		return err
	}

	if name == "" {
		name = "unnamed.bin"
	}
	// The peer chose the name; keep only its base so it cannot escape
	// the output directory.
	dest := filepath.Join(outDir, filepath.Base(name))
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"function":  "runRecv",
		"file_name": name,
		"file_size": len(body),
		"dest":      dest,
	}).Info("File received")
	return nil
}
