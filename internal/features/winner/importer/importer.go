// Package importer parses contest winner lists exported from the leaderboard
// (CSV with loosely standardized headers) and feeds them into the identity
// store. Parsing is fail-soft per row: a malformed row is skipped, only a
// missing header row fails the whole import.
package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"rewards-bot-backend/internal/common/logger"
	"rewards-bot-backend/internal/features/winner/models"
	"rewards-bot-backend/internal/features/winner/repository"
	"rewards-bot-backend/internal/platform/ethsign"
)

// ErrNoHeader is returned when the file has no usable header row.
var ErrNoHeader = errors.New("csv has no header row")

// ErrNoUsernameColumn is returned when no username alias matches any header.
var ErrNoUsernameColumn = errors.New("csv has no username column")

// Row is one parsed winner entry. Optional columns that were absent or
// unparsable stay nil.
type Row struct {
	Username string
	Rank     *int
	XP       *int
	Wallet   *string
	Wvc      *string
}

// Options tunes parsing. A zero Delimiter enables auto-detection.
type Options struct {
	Delimiter rune
}

// Header aliases observed in real exports, normalized form -> column.
// "position on leadborad" is a misspelling that shipped in production lists.
var (
	usernameAliases = []string{"username", "user"}
	rankAliases     = []string{"position on leadborad", "position on leaderboard", "position", "rank"}
	xpAliases       = []string{"xp", "xp on zealy", "zealy xp"}
	walletAliases   = []string{"binance smart chain address", "bsc wallet", "bsc address", "bsc", "wallet bsc", "wallet"}
	wvcAliases      = []string{"wvc"}
)

var intRunRe = regexp.MustCompile(`[-+]?\d+`)

// DetectDelimiter picks the delimiter by counting candidates on the first
// line. Highest count wins; semicolon beats comma on ties (real exports are
// usually semicolon-delimited); comma is the fallback when nothing matches.
func DetectDelimiter(firstLine string) rune {
	counts := map[rune]int{
		';':  strings.Count(firstLine, ";"),
		',':  strings.Count(firstLine, ","),
		'\t': strings.Count(firstLine, "\t"),
		'|':  strings.Count(firstLine, "|"),
	}
	best, bestCount := ',', 0
	for _, d := range []rune{';', ',', '\t', '|'} {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

func normalizeHeader(h string) string {
	s := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	s = strings.TrimSuffix(s, ":")
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

func findColumn(headers map[string]int, aliases []string) (int, bool) {
	for _, a := range aliases {
		if idx, ok := headers[a]; ok {
			return idx, true
		}
	}
	return -1, false
}

// parseIntLoose extracts the first integer run from values like "#1", "1st"
// or "1,234".
func parseIntLoose(v string) *int {
	s := strings.NewReplacer(",", " ", ".", " ").Replace(strings.TrimSpace(v))
	m := intRunRe.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}

// Parse reads the whole winner list. The input must be UTF-8; a leading BOM
// is tolerated.
func Parse(r io.Reader, opts Options) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoHeader
	}

	delim := opts.Delimiter
	if delim == 0 {
		firstLine, _, _ := strings.Cut(string(data), "\n")
		delim = DetectDelimiter(firstLine)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, ErrNoHeader
	}
	headers := make(map[string]int, len(header))
	for i, h := range header {
		headers[normalizeHeader(h)] = i
	}
	userIdx, ok := findColumn(headers, usernameAliases)
	if !ok {
		return nil, ErrNoUsernameColumn
	}
	rankIdx, hasRank := findColumn(headers, rankAliases)
	xpIdx, hasXP := findColumn(headers, xpAliases)
	walletIdx, hasWallet := findColumn(headers, walletAliases)
	wvcIdx, hasWvc := findColumn(headers, wvcAliases)

	field := func(rec []string, idx int) string {
		if idx < 0 || idx >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[idx])
	}

	var rows []Row
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Bad row, not a bad file.
			logger.Warn().Err(err).Msg("skipping malformed csv row")
			continue
		}
		username := field(rec, userIdx)
		if username == "" {
			continue
		}
		row := Row{Username: strings.ToLower(username)}
		if hasRank {
			row.Rank = parseIntLoose(field(rec, rankIdx))
		}
		if hasXP {
			row.XP = parseIntLoose(field(rec, xpIdx))
		}
		if hasWallet {
			if w := ethsign.CleanWallet(field(rec, walletIdx)); w != "" {
				row.Wallet = &w
			}
		}
		if hasWvc {
			if v := field(rec, wvcIdx); v != "" {
				code := v
				row.Wvc = &code
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ImportInto upserts parsed rows into the identity store. Only columns
// present and non-empty in a row overwrite stored fields; new usernames are
// created with an unused WVC.
func ImportInto(ctx context.Context, repo repository.Repository, rows []Row) (int, error) {
	imported := 0
	for _, row := range rows {
		patch := models.WinnerPatch{
			Rank:    row.Rank,
			XP:      row.XP,
			Wallet:  row.Wallet,
			WvcCode: row.Wvc,
		}
		if err := repo.Upsert(ctx, row.Username, patch); err != nil {
			logger.Warn().Err(err).Str("username", row.Username).Msg("winner upsert failed, row skipped")
			continue
		}
		imported++
	}
	return imported, nil
}
