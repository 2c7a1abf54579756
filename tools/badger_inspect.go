// badger_inspect dumps the chat keyspace of a Badger database as a
// table. It opens the store read-only with the lock guard bypassed, so
// it can run against a live server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "/tmp/badger", "Path to badger DB")
	// Messages by default; use "user:", "conv:" or "" for everything
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			// Secondary indexes hold only pointers, skip them
			if strings.HasPrefix(rawKey, "msgid:") ||
				strings.HasPrefix(rawKey, "uconv:") ||
				strings.HasPrefix(rawKey, "user:email:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				table.Append(describe(rawKey, v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// describe maps a raw record to one display row based on its key prefix.
func describe(key string, value []byte) []string {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var record struct {
			ID      string `json:"id"`
			Sender  string `json:"sender_name"`
			Content string `json:"content"`
			At      int64  `json:"at"`
		}
		if err := json.Unmarshal(value, &record); err != nil {
			return rawRow(key, value)
		}
		at := time.Unix(0, record.At).UTC().Format("15:04:05")
		detail := fmt.Sprintf("%s: %s", record.Sender, record.Content)
		return []string{key, "MESSAGE", at, shortID(record.ID), detail}

	case strings.HasPrefix(key, "user:"):
		var record struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			Email     string `json:"email"`
			CreatedAt int64  `json:"created_at"`
		}
		if err := json.Unmarshal(value, &record); err != nil {
			return rawRow(key, value)
		}
		at := time.Unix(0, record.CreatedAt).UTC().Format("2006-01-02")
		detail := fmt.Sprintf("%s <%s>", record.Name, record.Email)
		return []string{key, "USER", at, shortID(record.ID), detail}

	case strings.HasPrefix(key, "conv:"):
		var record struct {
			ID           string `json:"id"`
			Participants []struct {
				Name string `json:"name"`
			} `json:"participants"`
		}
		if err := json.Unmarshal(value, &record); err != nil {
			return rawRow(key, value)
		}
		var names []string
		for _, p := range record.Participants {
			names = append(names, p.Name)
		}
		return []string{key, "CONVERSATION", "", shortID(record.ID), strings.Join(names, ", ")}
	}
	return rawRow(key, value)
}

func rawRow(key string, value []byte) []string {
	detail := string(value)
	if len(detail) > 60 {
		detail = detail[:60] + "..."
	}
	return []string{key, "RAW", "", "", detail}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// If corruption is detected, open in write mode once to truncate
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}

			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
