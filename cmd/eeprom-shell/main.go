// Command eeprom-shell is an interactive console for inspecting and
// editing emulated-EEPROM flash images.
//
// It opens a flash image file, mounts the storage engine on it and drops
// into a REPL with history and tab completion:
//
//	eeprom> put 42 0xDEAD
//	OK
//	eeprom> get 42
//	DEAD
//	eeprom> stats
//	active sector:  sector1
//	records:        1
//	...
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/INLOpen/nexusflash/blockstore"
	"github.com/INLOpen/nexusflash/config"
	"github.com/INLOpen/nexusflash/engine"
)

const helpText = `Commands:
  get <id>            Print the value of a record as hex
  put <id> <hex>      Store a value for a record
  remove <id>         Remove a record
  list                List live record ids
  dump                Print every live record with its value
  stats               Print capacity and sector state
  erase               Perform a pending sector erase, if any
  clear               Format the image (erases all records)
  help                Show this help
  quit                Exit the shell
`

func main() {
	imagePath := flag.String("image", "", "Path to the flash image file (required)")
	configPath := flag.String("config", "", "Path to a YAML sector geometry file (default: built-in geometry)")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: eeprom-shell -image <flash_image> [-config <geometry.yaml>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(*imagePath, *configPath); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(imagePath, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	store, err := blockstore.OpenFileStore(imagePath, []blockstore.SectorRange{
		{Base: cfg.Sector1.Base, Size: cfg.Sector1.Size},
		{Base: cfg.Sector2.Base, Size: cfg.Sector2.Size},
	})
	if err != nil {
		return err
	}
	defer store.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := engine.Open(engine.Options{Store: store, Config: cfg, Logger: logger})
	if err != nil {
		return err
	}

	// Piped input runs as a plain script, one command per line.
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return runScript(e, store, os.Stdin)
	}

	rl, err := createReadlineInstance()
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Printf("Mounted %s (%d records, %d/%d bytes used). Type 'help' for commands.\n",
		imagePath, mustCount(e), e.UsedCapacity(), e.TotalCapacity())

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			// Ctrl+D or a closed terminal.
			fmt.Println()
			break
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			break
		}
		if err := dispatch(e, fields[0], fields[1:]); err != nil {
			fmt.Println("Error:", err)
		}
		if err := store.Sync(); err != nil {
			fmt.Println("Error:", err)
		}
	}
	return nil
}

func runScript(e *engine.Engine, store *blockstore.FileStore, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			break
		}
		if err := dispatch(e, fields[0], fields[1:]); err != nil {
			return err
		}
		if err := store.Sync(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func createReadlineInstance() (*readline.Instance, error) {
	completer := readline.NewPrefixCompleter(
		readline.PcItem("get"),
		readline.PcItem("put"),
		readline.PcItem("remove"),
		readline.PcItem("list"),
		readline.PcItem("dump"),
		readline.PcItem("stats"),
		readline.PcItem("erase"),
		readline.PcItem("clear"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
	return readline.NewEx(&readline.Config{
		Prompt:            "eeprom> ",
		HistoryFile:       historyFilePath(),
		AutoComplete:      completer,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".eeprom_shell_history")
}

func dispatch(e *engine.Engine, command string, args []string) error {
	switch command {
	case "get":
		id, err := parseID(args)
		if err != nil {
			return err
		}
		data, err := e.Get(id)
		if err != nil {
			return err
		}
		fmt.Printf("%X\n", data)
	case "put":
		id, err := parseID(args)
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return fmt.Errorf("usage: put <id> <hex>")
		}
		data, err := hex.DecodeString(strings.TrimPrefix(args[1], "0x"))
		if err != nil {
			return fmt.Errorf("invalid hex value %q: %w", args[1], err)
		}
		if err := e.Put(id, data); err != nil {
			return err
		}
		fmt.Println("OK")
	case "remove":
		id, err := parseID(args)
		if err != nil {
			return err
		}
		if err := e.Remove(id); err != nil {
			return err
		}
		fmt.Println("OK")
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
		fmt.Println("OK")
	case "clear":
		if err := e.Clear(); err != nil {
			return err
		}
		fmt.Println("Image formatted.")
	case "help":
		fmt.Print(helpText)
	default:
		return fmt.Errorf("unknown command %q, type 'help'", command)
	}
	return nil
}

func parseID(args []string) (uint16, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("missing record id")
	}
	id, err := strconv.ParseUint(args[0], 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid record id %q: %w", args[0], err)
	}
	return uint16(id), nil
}

func mustCount(e *engine.Engine) int {
	count, err := e.CountRecords()
	if err != nil {
		return 0
	}
	return count
}
