package main

import "path/filepath"

func baseName(path string) string {
	return filepath.Base(path)
}
