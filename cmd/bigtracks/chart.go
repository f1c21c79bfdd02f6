package main

import (
	"os"
	"path/filepath"

	"github.com/banshee-data/bigtracks/internal/quality"
)

func writeChart(q *quality.Quality, dbPath, htmlPath string) (err error) {
	f, err := os.Create(htmlPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return quality.ChartQuality(q, filepath.Base(filepath.Dir(mustAbs(dbPath))), f)
}

func mustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
