package datalink

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ErrSelection is returned for malformed stream lists and selectors.
var ErrSelection = errors.New("datalink: invalid stream selection")

// Stream selects the streams of one station.
type Stream struct {
	Network   string
	Station   string
	Selectors []string
}

// ParseStreamList parses a comma separated list of NET_STA[:selectors]
// entries. Entries without selectors get defaultSelectors.
func ParseStreamList(list, defaultSelectors string) ([]Stream, error) {
	var streams []Stream
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, sels, _ := strings.Cut(entry, ":")
		net, sta, ok := strings.Cut(id, "_")
		if !ok || net == "" || sta == "" {
			return nil, fmt.Errorf("%w: %q is not NET_STA", ErrSelection, entry)
		}
		streams = append(streams, newStream(net, sta, sels, defaultSelectors))
	}
	if len(streams) == 0 {
		return nil, fmt.Errorf("%w: empty stream list", ErrSelection)
	}
	return streams, nil
}

// ReadStreamList reads a stream list file with one "NET STA [selectors]"
// entry per line. Blank lines and lines starting with '#' are skipped.
func ReadStreamList(path, defaultSelectors string) ([]Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stream list: %w", err)
	}
	defer f.Close()

	var streams []Stream
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: %s:%d: expected NET STA [selectors]", ErrSelection, path, lineNo)
		}
		streams = append(streams, newStream(fields[0], fields[1], strings.Join(fields[2:], " "), defaultSelectors))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stream list: %w", err)
	}
	if len(streams) == 0 {
		return nil, fmt.Errorf("%w: %s lists no streams", ErrSelection, path)
	}
	return streams, nil
}

func newStream(net, sta, sels, defaultSelectors string) Stream {
	if strings.TrimSpace(sels) == "" {
		sels = defaultSelectors
	}
	return Stream{Network: net, Station: sta, Selectors: strings.Fields(sels)}
}

// MatchPattern compiles a stream selection into the regular expression sent
// with MATCH. Stream IDs have the form NET_STA_LOC_CHAN/MSEED. With no
// streams, selectors apply to every station; with neither, the result is
// empty and no MATCH is sent.
func MatchPattern(streams []Stream, selectors string) (string, error) {
	var alts []string
	if len(streams) == 0 {
		sels := strings.Fields(selectors)
		if len(sels) == 0 {
			return "", nil
		}
		alt, err := stationPattern("[^_]*", "[^_]*", sels)
		if err != nil {
			return "", err
		}
		alts = append(alts, alt)
	}
	for _, s := range streams {
		alt, err := stationPattern(wildcard(s.Network), wildcard(s.Station), s.Selectors)
		if err != nil {
			return "", err
		}
		alts = append(alts, alt)
	}

	pattern := alts[0]
	if len(alts) > 1 {
		pattern = "(?:" + strings.Join(alts, "|") + ")"
	}
	pattern = "^" + pattern + "$"
	if _, err := regexp.Compile(pattern); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSelection, err)
	}
	return pattern, nil
}

func stationPattern(net, sta string, sels []string) (string, error) {
	if len(sels) == 0 {
		return net + "_" + sta + "_.*", nil
	}
	parts := make([]string, 0, len(sels))
	for _, sel := range sels {
		p, err := selectorPattern(sel)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}
	chans := parts[0]
	if len(parts) > 1 {
		chans = "(?:" + strings.Join(parts, "|") + ")"
	}
	return net + "_" + sta + "_" + chans + "/MSEED", nil
}

// selectorPattern converts a [LL]CCC[.T] selector into a LOC_CHAN pattern.
// The type suffix is accepted but does not narrow the match.
func selectorPattern(sel string) (string, error) {
	if strings.HasPrefix(sel, "!") {
		return "", fmt.Errorf("%w: negated selector %q is not supported", ErrSelection, sel)
	}
	lc, _, _ := strings.Cut(sel, ".")
	switch len(lc) {
	case 3:
		return "[^_]*_" + wildcard(lc), nil
	case 5:
		return wildcard(lc[:2]) + "_" + wildcard(lc[2:]), nil
	default:
		return "", fmt.Errorf("%w: selector %q is not [LL]CCC[.T]", ErrSelection, sel)
	}
}

// wildcard quotes s for a regular expression, mapping '?' to any single
// character and '*' to any run of characters.
func wildcard(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '?':
			b.WriteString("[^_/]")
		case '*':
			b.WriteString("[^_/]*")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}
