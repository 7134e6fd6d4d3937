package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	teachServerURL string
	teachWatchers  []string
)

var teachCmd = &cobra.Command{
	Use:   "teach NAME IMAGE [IMAGE...]",
	Short: "Register face images under a name",
	Long: `Teach uploads one or more face images to a running facewatch
instance, which registers them with the face service under NAME.
With --watcher the registration runs through the named watchers
instead of going to the face service directly.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runTeach,
}

func init() {
	teachCmd.Flags().StringVarP(&teachServerURL, "server", "s", "http://localhost:3000", "Base URL of a running facewatch instance")
	teachCmd.Flags().StringSliceVarP(&teachWatchers, "watcher", "w", nil, "Watcher id(s) to route the registration through")
	rootCmd.AddCommand(teachCmd)
}

func runTeach(cmd *cobra.Command, args []string) error {
	name := args[0]
	files := args[1:]

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription(fmt.Sprintf("Teaching %s", name)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	client := &http.Client{Timeout: 30 * time.Second}
	failed := 0
	for _, file := range files {
		if err := uploadFace(client, name, file); err != nil {
			fmt.Fprintf(os.Stderr, "\n%s: %v\n", file, err)
			failed++
		}
		bar.Add(1)
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	if failed > 0 {
		return fmt.Errorf("%d of %d image(s) failed", failed, len(files))
	}
	fmt.Fprintf(os.Stderr, "Registered %d image(s) for %s\n", len(files), name)
	return nil
}

func uploadFace(client *http.Client, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if err := mw.WriteField("name", name); err != nil {
		return err
	}
	for _, id := range teachWatchers {
		if err := mw.WriteField("entity_id", id); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := client.Post(teachServerURL+"/api/teach/upload", mw.FormDataContentType(), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server rejected image: %s", apiErr.Error)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}
