package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bnema/dnd-campaign-cli/internal/application"
	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

type creationFlags struct {
	dataPath  string
	filePaths []string
}

func (f *creationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.dataPath, "data", "", "JSON payload file (- for stdin)")
	cmd.Flags().StringArrayVar(&f.filePaths, "file", nil, "Attach a file (repeatable)")
	_ = cmd.MarkFlagRequired("data")
}

type createFunc func(cmd *cobra.Command, data json.RawMessage, files []domain.FileAttachment) (application.CreationResult, error)

func runCreate(cmd *cobra.Command, app *app, noun string, flags creationFlags, create createFunc) error {
	data, err := readPayload(cmd.InOrStdin(), flags.dataPath)
	if err != nil {
		return err
	}
	files, err := readAttachments(flags.filePaths)
	if err != nil {
		return err
	}

	// one probe stands in for the browser's online flag
	app.monitor.Probe(cmd.Context())

	result, err := create(cmd, data, files)
	if err != nil {
		return fmt.Errorf("create %s: %w", noun, err)
	}

	out := cmd.OutOrStdout()
	if result.Queued {
		_, err := fmt.Fprintf(out, "Backend unreachable; %s queued as #%d. Run `dnd sync` once you are back online.\n", noun, result.Action.ID)
		return err
	}

	_, _ = fmt.Fprintf(out, "Created %s\n", noun)
	return writeIndentedJSON(out, result.Response)
}

func readPayload(stdin io.Reader, path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, errors.New("payload is not valid JSON")
	}
	return json.RawMessage(data), nil
}

func readAttachments(paths []string) ([]domain.FileAttachment, error) {
	files := make([]domain.FileAttachment, 0, len(paths))
	for _, path := range paths {
		file, err := readAttachment(path)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func readAttachment(path string) (domain.FileAttachment, error) {
	handle, err := os.Open(path)
	if err != nil {
		return domain.FileAttachment{}, fmt.Errorf("open attachment: %w", err)
	}
	defer handle.Close()

	info, err := handle.Stat()
	if err != nil {
		return domain.FileAttachment{}, fmt.Errorf("stat attachment: %w", err)
	}

	file, err := domain.ReadAttachment(filepath.Base(path), "", info.ModTime(), handle)
	if err != nil {
		return domain.FileAttachment{}, err
	}
	file.MimeType = detectMimeType(file.Name, file.Content)
	return file, nil
}

func detectMimeType(name string, content []byte) string {
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		return byExt
	}
	return http.DetectContentType(content)
}

func writeIndentedJSON(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
