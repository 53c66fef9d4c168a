package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/INLOpen/nexusflash/blockstore"
	"github.com/INLOpen/nexusflash/compressors"
	"github.com/INLOpen/nexusflash/config"
	"github.com/INLOpen/nexusflash/engine"
	"github.com/INLOpen/nexusflash/snapshot"
)

const usageText = `Usage: eeprom-util -image <flash_image> [options] <command> [args]

Commands:
  init                Format the image (erases all records)
  get <id>            Print the value of a record as hex
  put <id> <hex>      Store a value for a record
  remove <id>         Remove a record
  list                List live record ids
  dump                Print every live record with its value
  stats               Print capacity and sector state
  erase               Perform a pending sector erase, if any
  backup <file>       Write a compressed snapshot of the image
  restore <file>      Restore the image from a snapshot
`

func main() {
	imagePath := flag.String("image", "", "Path to the flash image file (required)")
	configPath := flag.String("config", "", "Path to a YAML sector geometry file (default: built-in geometry)")
	compression := flag.String("compression", "snappy", "Snapshot compression (none, snappy, lz4, zstd)")
	logLevel := flag.String("log-level", "warn", "Logging level (debug, info, warn, error)")
	logOutput := flag.String("log-output", "stderr", "Log output (stderr, file, none)")
	logFile := flag.String("log-file", "eeprom-util.log", "Path to log file if output is 'file'")
	flag.Parse()

	if *imagePath == "" || flag.NArg() == 0 {
		fmt.Print(usageText)
		flag.PrintDefaults()
		os.Exit(1)
	}

	// --- Logger Setup ---
	var level slog.Level
	switch strings.ToLower(*logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		fmt.Printf("Invalid log level: %s. Defaulting to warn.\n", *logLevel)
		level = slog.LevelWarn
	}

	var output io.Writer = os.Stderr
	switch strings.ToLower(*logOutput) {
	case "stderr":
		// Already set
	case "file":
		file, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			slog.Error("Failed to open log file", "path", *logFile, "error", err)
			os.Exit(1)
		}
		defer file.Close()
		output = file
	case "none":
		output = io.Discard
	}
	logger := slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))

	if err := run(*imagePath, *configPath, *compression, flag.Args(), logger); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(imagePath, configPath, compression string, args []string, logger *slog.Logger) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	sectors := []blockstore.SectorRange{
		{Base: cfg.Sector1.Base, Size: cfg.Sector1.Size},
		{Base: cfg.Sector2.Base, Size: cfg.Sector2.Size},
	}
	store, err := blockstore.OpenFileStore(imagePath, sectors)
	if err != nil {
		return err
	}
	defer store.Close()

	e, err := engine.Open(engine.Options{Store: store, Config: cfg, Logger: logger})
	if err != nil {
		return err
	}

	command, args := args[0], args[1:]
	switch command {
	case "init":
		if err := e.Clear(); err != nil {
			return err
		}
		fmt.Println("Image formatted.")
	case "get":
		id, err := parseID(args, 1)
		if err != nil {
			return err
		}
		data, err := e.Get(id)
		if err != nil {
			return err
		}
		fmt.Printf("%X\n", data)
	case "put":
		id, err := parseID(args, 2)
		if err != nil {
			return err
		}
		data, err := parseValue(args[1])
		if err != nil {
			return err
		}
		if err := e.Put(id, data); err != nil {
			return err
		}
	case "remove":
		id, err := parseID(args, 1)
		if err != nil {
			return err
		}
		if err := e.Remove(id); err != nil {
			return err
		}
	case "list":
		ids, err := e.ListRecords()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	case "dump":
		ids, err := e.ListRecords()
		if err != nil {
			return err
		}
		for _, id := range ids {
			data, err := e.Get(id)
			if err != nil {
				return err
			}
			fmt.Printf("%5d: %X\n", id, data)
		}
	case "stats":
		count, err := e.CountRecords()
		if err != nil {
			return err
		}
		pending, err := e.HasPendingErase()
		if err != nil {
			return err
		}
		fmt.Printf("active sector:  %s\n", e.ActiveSector())
		fmt.Printf("records:        %d\n", count)
		fmt.Printf("used bytes:     %d\n", e.UsedCapacity())
		fmt.Printf("total bytes:    %d\n", e.TotalCapacity())
		fmt.Printf("pending erase:  %v\n", pending)
	case "erase":
		if err := e.PerformPendingErase(); err != nil {
			return err
		}
	case "backup":
		if len(args) < 1 {
			return fmt.Errorf("usage: backup <file>")
		}
		compressor, err := compressors.ByName(compression)
		if err != nil {
			return err
		}
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		if err := snapshot.Write(f, store, sectors, compressor); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("Snapshot written to %s (%s).\n", args[0], compressor.Type())
	case "restore":
		if len(args) < 1 {
			return fmt.Errorf("usage: restore <file>")
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		if err := snapshot.Restore(f, store, sectors); err != nil {
			return err
		}
		fmt.Printf("Image restored from %s.\n", args[0])
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return store.Sync()
}

func parseID(args []string, want int) (uint16, error) {
	if len(args) < want {
		return 0, fmt.Errorf("missing argument, see usage")
	}
	id, err := strconv.ParseUint(args[0], 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid record id %q: %w", args[0], err)
	}
	return uint16(id), nil
}

// parseValue decodes a hex string, with or without a 0x prefix.
func parseValue(arg string) ([]byte, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(arg, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex value %q: %w", arg, err)
	}
	return data, nil
}
