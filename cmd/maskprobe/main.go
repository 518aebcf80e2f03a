// maskprobe reads text from stdin, runs one masking pass and prints the
// masked text plus the token map. Debug tool for tuning detector patterns.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/filestodata/filestodata/internal/masking"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	text, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read stdin:", err)
		os.Exit(1)
	}

	engine := masking.NewEngine(logger)
	masked, maskingMap := engine.Mask(string(text))

	fmt.Println(masked)
	if len(maskingMap) > 0 {
		out, _ := json.MarshalIndent(maskingMap, "", "  ")
		fmt.Fprintln(os.Stderr, string(out))
	}
}
