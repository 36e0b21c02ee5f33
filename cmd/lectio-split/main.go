package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lectiolabs/lectio-core/internal/config"
	"github.com/lectiolabs/lectio-core/internal/segment"
)

var version = "0.1.0-dev"

type sectionReport struct {
	Index        int    `json:"index"`
	Title        string `json:"title"`
	Chars        int    `json:"chars"`
	Chunks       int    `json:"chunks"`
	EstimatedSec int    `json:"estimated_sec"`
}

func main() {
	var (
		filePath  string
		title     string
		maxChunk  int
		threshold int
		asJSON    bool
	)
	splitCmd := flag.NewFlagSet("split", flag.ExitOnError)
	splitCmd.StringVar(&filePath, "file", "", "Path to the text file to split")
	splitCmd.StringVar(&title, "title", "", "Fallback title when no headings are found")
	splitCmd.IntVar(&maxChunk, "max-chunk-chars", 0, "Override the per-request character ceiling")
	splitCmd.IntVar(&threshold, "long-audio-threshold", 0, "Override the oversized-section threshold")
	splitCmd.BoolVar(&asJSON, "json", false, "Emit the section report as JSON")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'split' or 'version'")
		os.Exit(2)
	}

	switch os.Args[1] {
	case "split":
		splitCmd.Parse(os.Args[2:])
		if err := runSplit(filePath, title, maxChunk, threshold, asJSON); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
}

func runSplit(path, title string, maxChunk, threshold int, asJSON bool) error {
	if path == "" {
		return fmt.Errorf("missing -file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	cfg := config.Default().Segmenter
	if maxChunk > 0 {
		cfg.MaxChunkChars = maxChunk
	}
	if threshold > 0 {
		cfg.LongAudioThreshold = threshold
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	sections := segment.Parse(string(data), title, cfg)
	reports := make([]sectionReport, 0, len(sections))
	for i, sec := range sections {
		chars := sec.CharCount()
		chunks := segment.Chunks(sec.Content, segment.ChunkOptions{MaxChars: cfg.MaxChunkChars})
		reports = append(reports, sectionReport{
			Index:        i,
			Title:        sec.Title,
			Chars:        chars,
			Chunks:       len(chunks),
			EstimatedSec: segment.EstimateDurationSec(chars),
		})
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	for _, r := range reports {
		fmt.Printf("%3d  %-40s  %6d chars  %3d chunks  ~%s\n",
			r.Index, r.Title, r.Chars, r.Chunks, formatDuration(r.EstimatedSec))
	}
	return nil
}

func formatDuration(sec int) string {
	if sec < 60 {
		return fmt.Sprintf("%ds", sec)
	}
	return fmt.Sprintf("%dm%02ds", sec/60, sec%60)
}
