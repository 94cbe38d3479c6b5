// Package cli implements the "import" and "ask" subcommands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"docqa/internal/answer"
	"docqa/internal/document"
)

// RunBatchImport scans the given paths (files or directories) and ingests
// every supported file, printing a per-file line and a final report.
func RunBatchImport(args []string, dm *document.Manager) {
	if len(args) == 0 {
		fmt.Println("error: at least one file or directory is required")
		fmt.Println("usage: docqa import <path> [...]")
		os.Exit(1)
	}

	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			fmt.Printf("warning: cannot access %s: %v\n", arg, err)
			continue
		}
		if !info.IsDir() {
			if document.DetectFileType(arg) != "" {
				files = append(files, arg)
			} else {
				fmt.Printf("skipping unsupported file %s\n", arg)
			}
			continue
		}
		filepath.Walk(arg, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				fmt.Printf("warning: cannot access %s: %v\n", path, err)
				return nil
			}
			if fi.IsDir() {
				return nil
			}
			if document.DetectFileType(fi.Name()) != "" {
				files = append(files, path)
			}
			return nil
		})
	}

	if len(files) == 0 {
		fmt.Println("no supported files found")
		return
	}

	fmt.Printf("found %d files, importing...\n\n", len(files))

	type failedFile struct {
		Path   string
		Reason string
	}
	var success, cached, failed int
	var failedFiles []failedFile
	for i, filePath := range files {
		fmt.Printf("[%d/%d] %s ... ", i+1, len(files), filePath)

		fileData, err := os.ReadFile(filePath)
		if err != nil {
			reason := fmt.Sprintf("read failed: %v", err)
			fmt.Println(reason)
			failed++
			failedFiles = append(failedFiles, failedFile{Path: filePath, Reason: reason})
			continue
		}

		doc, err := dm.UploadFile(document.UploadFileRequest{
			FileName: filepath.Base(filePath),
			FileData: fileData,
		})
		if err != nil {
			reason := fmt.Sprintf("import failed: %v", err)
			fmt.Println(reason)
			failed++
			failedFiles = append(failedFiles, failedFile{Path: filePath, Reason: reason})
			continue
		}
		if doc.Status == document.StatusFailed {
			reason := fmt.Sprintf("processing failed: %s", doc.Error)
			fmt.Println(reason)
			failed++
			failedFiles = append(failedFiles, failedFile{Path: filePath, Reason: reason})
			continue
		}

		if doc.FromCache {
			fmt.Printf("cached (%d chunks, id %.12s)\n", doc.ChunkCount, doc.ID)
			cached++
		} else {
			fmt.Printf("ok (%d chunks, id %.12s)\n", doc.ChunkCount, doc.ID)
		}
		success++
	}

	fmt.Println("\n========== import report ==========")
	fmt.Printf("total files:    %d\n", len(files))
	fmt.Printf("imported:       %d (%d from cache)\n", success, cached)
	fmt.Printf("failed:         %d\n", failed)
	if len(failedFiles) > 0 {
		fmt.Println("\nfailed files:")
		for _, f := range failedFiles {
			absPath, err := filepath.Abs(f.Path)
			if err != nil {
				absPath = f.Path
			}
			fmt.Printf("  %s\n    reason: %s\n", absPath, f.Reason)
		}
	}
	fmt.Println("===================================")
}

// RunAsk answers a single question from the command line.
func RunAsk(args []string, engine *answer.Engine) {
	if len(args) == 0 {
		fmt.Println("error: a question is required")
		fmt.Println("usage: docqa ask \"<question>\"")
		os.Exit(1)
	}

	question := args[0]
	resp, err := engine.Ask(question)
	if err != nil {
		fmt.Printf("failed to answer: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(resp.Answer)
	if len(resp.Chunks) > 0 {
		fmt.Printf("\n(answered from %d retrieved chunks)\n", len(resp.Chunks))
	}
}
