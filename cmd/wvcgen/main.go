// wvcgen generates one-time wallet validation codes and writes them to a CSV
// ready for distribution to winners.
package main

import (
	"crypto/rand"
	"encoding/csv"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func main() {
	var (
		count  = flag.Int("n", 100, "number of codes to generate")
		prefix = flag.String("prefix", "WVC", "code prefix")
		groups = flag.Int("groups", 3, "number of 4-character groups per code")
		days   = flag.Int("expires", 90, "days until expiry")
		out    = flag.String("out", "wvc_codes.csv", "output CSV path")
	)
	flag.Parse()

	if *count <= 0 || *groups <= 0 {
		fmt.Fprintln(os.Stderr, "n and groups must be positive")
		os.Exit(2)
	}

	codes, err := generate(*count, *prefix, *groups)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate: %v\n", err)
		os.Exit(1)
	}
	if err := writeCSV(*out, codes, *days); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d codes to %s\n", len(codes), *out)
}

// generate produces count unique codes like "WVC-7K2M-PQ9X-44AB".
func generate(count int, prefix string, groups int) ([]string, error) {
	seen := make(map[string]struct{}, count)
	codes := make([]string, 0, count)
	for len(codes) < count {
		code, err := oneCode(prefix, groups)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

func oneCode(prefix string, groups int) (string, error) {
	parts := make([]string, 0, groups+1)
	if prefix != "" {
		parts = append(parts, prefix)
	}
	max := big.NewInt(int64(len(alphabet)))
	for g := 0; g < groups; g++ {
		var b strings.Builder
		for i := 0; i < 4; i++ {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			b.WriteByte(alphabet[n.Int64()])
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "-"), nil
}

func writeCSV(path string, codes []string, expiresDays int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	now := time.Now().UTC()
	expires := now.AddDate(0, 0, expiresDays)

	w := csv.NewWriter(f)
	if err := w.Write([]string{"wvc", "assigned_to", "created_at", "expires_at", "used"}); err != nil {
		return err
	}
	for _, code := range codes {
		row := []string{
			code,
			"",
			now.Format("2006-01-02"),
			expires.Format("2006-01-02"),
			strconv.FormatBool(false),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
