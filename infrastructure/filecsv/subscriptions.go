package filecsv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/frankmarazita/yt-subscription-cli/domain/model"
	"github.com/frankmarazita/yt-subscription-cli/domain/repository"
	"github.com/frankmarazita/yt-subscription-cli/infrastructure/logger"
)

var header = []string{"Channel Id", "Channel Url", "Channel Title"}

// SubscriptionFile is the subscriptions CSV exported by Google Takeout.
type SubscriptionFile struct {
	mu   sync.Mutex
	path string
}

func NewSubscriptionFile(path string) *SubscriptionFile {
	return &SubscriptionFile{path: path}
}

func (s *SubscriptionFile) Path() string { return s.path }

// Load returns every row that has both a channel id and a title, in file order.
func (s *SubscriptionFile) Load(ctx context.Context) ([]model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while open file")
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}
	defer f.Close()
	return readSubscriptions(ctx, f)
}

func readSubscriptions(ctx context.Context, r io.Reader) ([]model.Subscription, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	subs := make([]model.Subscription, 0)
	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse subscriptions: %w", err)
		}
		line++
		if line == 1 {
			continue
		}
		sub, ok := toSubscription(record)
		if !ok {
			continue
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func toSubscription(record []string) (model.Subscription, bool) {
	field := func(i int) string {
		if i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}
	sub := model.Subscription{ChannelID: field(0), ChannelURL: field(1), Title: field(2)}
	if sub.ChannelID == "" || sub.Title == "" {
		return sub, false
	}
	return sub, true
}

// Add appends sub, creating the file with its header when missing.
// A channel that is already listed yields ErrAlreadySubscribed.
func (s *SubscriptionFile) Add(ctx context.Context, sub model.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return fmt.Errorf("create subscriptions dir: %w", err)
		}
		return s.write(os.O_CREATE|os.O_WRONLY|os.O_TRUNC, header, sub)
	case err != nil:
		return fmt.Errorf("open subscriptions: %w", err)
	}
	existing, err := readSubscriptions(ctx, f)
	_ = f.Close()
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.ChannelID == sub.ChannelID {
			return fmt.Errorf("channel %q: %w", e.Title, repository.ErrAlreadySubscribed)
		}
	}
	return s.write(os.O_APPEND|os.O_WRONLY, nil, sub)
}

func (s *SubscriptionFile) write(flag int, head []string, sub model.Subscription) error {
	if sub.ChannelURL == "" {
		sub.ChannelURL = "https://www.youtube.com/channel/" + sub.ChannelID
	}
	if head == nil {
		if err := s.ensureTrailingNewline(); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(s.path, flag, 0o644)
	if err != nil {
		return fmt.Errorf("open subscriptions: %w", err)
	}
	w := csv.NewWriter(f)
	if head != nil {
		_ = w.Write(head)
	}
	_ = w.Write([]string{sub.ChannelID, sub.ChannelURL, sub.Title})
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write subscriptions: %w", err)
	}
	return f.Close()
}

// ensureTrailingNewline keeps an appended row off the last line of hand edited files.
func (s *SubscriptionFile) ensureTrailingNewline() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read subscriptions: %w", err)
	}
	if len(data) == 0 || data[len(data)-1] == '\n' {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open subscriptions: %w", err)
	}
	if _, err := f.WriteString("\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

var _ repository.ISubscriptionList = (*SubscriptionFile)(nil)
