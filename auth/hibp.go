package auth

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	hibpRangeURL  = "https://api.pwnedpasswords.com/range/"
	hibpUserAgent = "tensors-cli"
)

// HIBPClient queries the Have I Been Pwned range API.
type HIBPClient struct {
	// RangeURL is the range endpoint including its trailing slash.
	RangeURL string
	HTTP     *http.Client
}

// DefaultHIBPClient talks to api.pwnedpasswords.com with a short timeout.
var DefaultHIBPClient = &HIBPClient{
	RangeURL: hibpRangeURL,
	HTTP:     &http.Client{Timeout: 4 * time.Second},
}

// HIBPResult captures whether a password hash suffix was found in the HIBP dataset.
type HIBPResult struct {
	Found bool
	Count int
}

// Check looks pw up using k-anonymity: only the first 5 hex characters of
// SHA1(pw) leave the process, and the returned suffixes are matched locally.
func (c *HIBPClient) Check(ctx context.Context, pw []byte) (HIBPResult, error) {
	var result HIBPResult

	sum := sha1.Sum(pw)
	hashHex := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix := hashHex[:5]
	suffix := hashHex[5:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RangeURL+prefix, nil)
	if err != nil {
		return result, fmt.Errorf("hibp request: %w", err)
	}
	req.Header.Set("User-Agent", hibpUserAgent)
	req.Header.Set("Add-Padding", "true")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("hibp query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("hibp query: unexpected status %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineSuffix, countStr, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(lineSuffix, suffix) {
			continue
		}

		count, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil {
			return result, fmt.Errorf("hibp parse count: %w", err)
		}
		// Padding entries carry a zero count.
		if count == 0 {
			continue
		}

		result.Found = true
		result.Count = count
		return result, nil
	}

	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("hibp read response: %w", err)
	}

	return result, nil
}
