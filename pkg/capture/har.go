// Package capture drives an external mitmdump process to record browser
// traffic as HAR files, extracts credentials from recorded requests, and
// archives finished captures to Google Cloud Storage.
package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// HAR document types, limited to the fields the capture tooling reads.

type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type HARRequest struct {
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Headers []NameValue `json:"headers"`
	Cookies []NameValue `json:"cookies"`
}

type HARResponse struct {
	Status  int         `json:"status"`
	Headers []NameValue `json:"headers"`
}

type HAREntry struct {
	StartedDateTime string      `json:"startedDateTime,omitempty"`
	Request         HARRequest  `json:"request"`
	Response        HARResponse `json:"response,omitempty"`
}

type HARLog struct {
	Entries []HAREntry `json:"entries"`
}

type HARFile struct {
	Log HARLog `json:"log"`
}

// ParseHARFile reads and decodes a HAR file.
func ParseHARFile(path string) (*HARFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read HAR file %s: %w", path, err)
	}
	var har HARFile
	if err := json.Unmarshal(data, &har); err != nil {
		return nil, fmt.Errorf("failed to parse HAR file %s: %w", path, err)
	}
	return &har, nil
}

// ExtractHeadersAndCookies returns the entry's request headers and cookies as
// maps. The host header is excluded: captured credentials get replayed against
// other endpoints, and a stale host header would break those requests.
func ExtractHeadersAndCookies(entry *HAREntry) (headers map[string]string, cookies map[string]string) {
	headers = make(map[string]string, len(entry.Request.Headers))
	for _, h := range entry.Request.Headers {
		name := strings.ToLower(h.Name)
		if name == "host" {
			continue
		}
		headers[name] = h.Value
	}

	cookies = make(map[string]string, len(entry.Request.Cookies))
	for _, c := range entry.Request.Cookies {
		cookies[c.Name] = c.Value
	}
	return headers, cookies
}

// FindRequestByPath returns the first entry in the HAR file whose request URL
// contains urlPath, or nil when no entry matches.
func FindRequestByPath(harPath, urlPath string) (*HAREntry, error) {
	har, err := ParseHARFile(harPath)
	if err != nil {
		return nil, err
	}
	for i := range har.Log.Entries {
		if strings.Contains(har.Log.Entries[i].Request.URL, urlPath) {
			return &har.Log.Entries[i], nil
		}
	}
	return nil, nil
}
