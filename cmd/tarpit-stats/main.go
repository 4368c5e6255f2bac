// tarpit-stats is an offline report over tarpitd's JSON log stream.
// Usage: tarpit-stats [--top N] [--log PATH]
//
// Reads disconnect events (run the daemon with --log-format json) and prints
// per-peer totals, cause breakdown and aggregate wasted scanner time.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

type event struct {
	Msg      string `json:"msg"`
	Peer     string `json:"peer"`
	Cause    string `json:"cause"`
	Bytes    uint64 `json:"bytes"`
	Duration string `json:"duration"`
	Country  string `json:"country"`
}

type peerTotals struct {
	Sessions int
	Bytes    uint64
	Wasted   time.Duration
	Country  string
}

type counter map[string]int

func main() {
	logPath := flag.String("log", "-", "Log file to read, - for stdin")
	topN := flag.Int("top", 10, "Number of peers to show")
	flag.Parse()

	var in io.Reader = os.Stdin
	if *logPath != "-" {
		f, err := os.Open(*logPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	peers, causes, totalBytes, totalWasted, err := aggregate(in)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	report(os.Stdout, peers, causes, totalBytes, totalWasted, *topN)
}

// aggregate folds disconnect events into per-peer and per-cause totals.
// Lines that are not JSON or not disconnect events are skipped, so the tool
// tolerates mixed streams.
func aggregate(in io.Reader) (map[string]*peerTotals, counter, uint64, time.Duration, error) {
	peers := make(map[string]*peerTotals)
	causes := make(counter)
	var totalBytes uint64
	var totalWasted time.Duration

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if ev.Msg != "disconnect" || ev.Peer == "" {
			continue
		}

		host := peerHost(ev.Peer)
		p := peers[host]
		if p == nil {
			p = &peerTotals{}
			peers[host] = p
		}
		p.Sessions++
		p.Bytes += ev.Bytes
		if ev.Country != "" {
			p.Country = ev.Country
		}
		if d, err := time.ParseDuration(ev.Duration); err == nil {
			p.Wasted += d
			totalWasted += d
		}
		totalBytes += ev.Bytes
		causes[ev.Cause]++
	}
	if err := sc.Err(); err != nil {
		return nil, nil, 0, 0, fmt.Errorf("read log: %w", err)
	}
	return peers, causes, totalBytes, totalWasted, nil
}

// peerHost strips the ephemeral port so repeat visits from one scanner
// aggregate together.
func peerHost(peer string) string {
	if host, _, err := net.SplitHostPort(peer); err == nil {
		return host
	}
	return peer
}

func report(w io.Writer, peers map[string]*peerTotals, causes counter, totalBytes uint64, totalWasted time.Duration, topN int) {
	sessions := 0
	for _, p := range peers {
		sessions += p.Sessions
	}

	fmt.Fprintf(w, "sessions: %d  unique peers: %d  bytes sent: %d  scanner time wasted: %s\n\n",
		sessions, len(peers), totalBytes, totalWasted.Round(time.Second))

	fmt.Fprintln(w, "causes:")
	for _, c := range sortedKeys(causes) {
		fmt.Fprintf(w, "  %-14s %d\n", c, causes[c])
	}
	fmt.Fprintln(w)

	type ranked struct {
		host string
		p    *peerTotals
	}
	rankedPeers := make([]ranked, 0, len(peers))
	for host, p := range peers {
		rankedPeers = append(rankedPeers, ranked{host, p})
	}
	sort.Slice(rankedPeers, func(i, j int) bool {
		return rankedPeers[i].p.Wasted > rankedPeers[j].p.Wasted
	})
	if topN > 0 && len(rankedPeers) > topN {
		rankedPeers = rankedPeers[:topN]
	}

	rows := make([][]string, 0, len(rankedPeers))
	for _, r := range rankedPeers {
		rows = append(rows, []string{
			r.host,
			r.p.Country,
			strconv.Itoa(r.p.Sessions),
			strconv.FormatUint(r.p.Bytes, 10),
			r.p.Wasted.Round(time.Second).String(),
		})
	}
	printTable(w, []string{"PEER", "CC", "SESSIONS", "BYTES", "WASTED"}, rows)
}

func sortedKeys(c counter) []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	printRow := func(cells []string) {
		for i, cell := range cells {
			fmt.Fprintf(w, "%-*s  ", widths[i], cell)
		}
		fmt.Fprintln(w)
	}
	printRow(headers)
	for _, row := range rows {
		printRow(row)
	}
}
