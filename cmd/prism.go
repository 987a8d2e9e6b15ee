package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/nulzo/prism-gateway/internal/cli"
)

var AppVersion = "v0.0.0"

// ReleaseURL points at the latest published release of the gateway.
var ReleaseURL = "https://api.github.com/repos/nulzo/prism-gateway/releases/latest"

type GitHubRelease struct {
	TagName string `json:"tag_name"`
}

// LatestRelease returns the newest tag when it is ahead of current.
// Any failure reads as "no update".
func LatestRelease(ctx context.Context, client *http.Client, current string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ReleaseURL, nil)
	if err != nil {
		return "", false
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", false
	}

	cur, err := version.NewVersion(current)
	if err != nil {
		return "", false
	}

	latest, err := version.NewVersion(release.TagName)
	if err != nil {
		return "", false
	}

	return release.TagName, cur.LessThan(latest)
}

func CheckForUpdates(ctx context.Context) {
	client := &http.Client{
		Timeout: 2 * time.Second,
	}

	latest, outdated := LatestRelease(ctx, client, AppVersion)
	if !outdated {
		return
	}

	fmt.Println("---------------------------------------------------------")
	fmt.Printf("%s  WARNING: You are running an outdated version (%s).\n", cli.WarningSign(), AppVersion)
	fmt.Printf("   The latest version is %s.\n", cli.Style(latest, cli.Green))
	fmt.Println("   Please pull the latest Docker image.")
	fmt.Println("---------------------------------------------------------")
}
