// Package roster предоставляет клиент реестра студентов института.
package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Client инкапсулирует HTTP-взаимодействие с реестром студентов.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Record описывает одну строку выгрузки реестра.
type Record struct {
	RollNumber  string
	Name        string
	RoomNumber  string
	PhoneNumber string
	Hall        string
	Year        int
	Balance     float64
}

// NewClient создаёт клиент реестра по указанному адресу.
// Запросы к реестру повторяются при временных сетевых сбоях.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc.StandardClient(),
	}
}

// FetchRoster выгружает реестр студентов в формате CSV:
// roll,name,room,phone,hall,year,balance. Первая строка — заголовок.
// Вторым значением возвращается число пропущенных некорректных строк:
// одна испорченная строка не прерывает выгрузку остальных.
func (c *Client) FetchRoster(ctx context.Context) ([]Record, int, error) {
	if c == nil || c.baseURL == "" {
		return nil, 0, fmt.Errorf("roster client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	url := base + "/api/roster.csv"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return parseRoster(resp.Body)
}

const rosterFields = 7

func parseRoster(r io.Reader) ([]Record, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		records []Record
		skipped int
		first   = true
	)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			skipped++
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read csv: %w", err)
		}

		if first {
			first = false
			if strings.EqualFold(row[0], "roll") {
				continue
			}
		}

		if len(row) != rosterFields {
			skipped++
			continue
		}

		year, err := strconv.Atoi(strings.TrimSpace(row[5]))
		if err != nil {
			skipped++
			continue
		}

		balance, err := strconv.ParseFloat(strings.TrimSpace(row[6]), 64)
		if err != nil {
			skipped++
			continue
		}

		records = append(records, Record{
			RollNumber:  strings.ToUpper(strings.TrimSpace(row[0])),
			Name:        strings.TrimSpace(row[1]),
			RoomNumber:  strings.TrimSpace(row[2]),
			PhoneNumber: strings.TrimSpace(row[3]),
			Hall:        strings.TrimSpace(row[4]),
			Year:        year,
			Balance:     balance,
		})
	}

	return records, skipped, nil
}
