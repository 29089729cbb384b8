package notify

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// recordingMailer keeps every message it is asked to send
type recordingMailer struct {
	mu    sync.Mutex
	sent  []Message
	fail  error
	block chan struct{}
}

func (m *recordingMailer) Send(ctx context.Context, msg Message) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

func TestDispatcher(t *testing.T) {
	t.Parallel()

	t.Run("delivers_and_drains_on_stop", func(t *testing.T) {
		t.Parallel()
		mailer := &recordingMailer{}
		d, err := NewDispatcher(mailer, DispatcherConfig{Workers: 2, QueueSize: 10})
		require.NoError(t, err)
		d.Start(context.Background())

		for i := 0; i < 5; i++ {
			require.NoError(t, d.Enqueue("", Message{To: "u" + strconv.Itoa(i) + "@example.com", Subject: "hi"}))
		}
		d.Stop()

		require.Len(t, mailer.messages(), 5)
		require.ErrorIs(t, d.Enqueue("", Message{To: "late@example.com"}), ErrStopped)
	})

	t.Run("suppresses_duplicate_keys", func(t *testing.T) {
		t.Parallel()
		mailer := &recordingMailer{}
		d, err := NewDispatcher(mailer, DispatcherConfig{QueueSize: 10, DedupeSize: 16})
		require.NoError(t, err)
		d.Start(context.Background())

		msg := Message{To: "owner@example.com", Subject: subjectAuctionFinished}
		require.NoError(t, d.Enqueue("finished:a1:owner", msg))
		require.NoError(t, d.Enqueue("finished:a1:owner", msg))
		require.NoError(t, d.Enqueue("finished:a2:owner", msg))
		d.Stop()

		require.Len(t, mailer.messages(), 2)
	})

	t.Run("full_queue_rejects_without_blocking", func(t *testing.T) {
		t.Parallel()
		d, err := NewDispatcher(&recordingMailer{}, DispatcherConfig{QueueSize: 1, DedupeSize: 4})
		require.NoError(t, err)

		require.NoError(t, d.Enqueue("k1", Message{To: "a@example.com"}))
		require.ErrorIs(t, d.Enqueue("k2", Message{To: "b@example.com"}), ErrQueueFull)
		require.Equal(t, 1, d.Pending())

		// the rejected key was forgotten, so it can be queued once there is room
		<-d.queue
		require.NoError(t, d.Enqueue("k2", Message{To: "b@example.com"}))
	})

	t.Run("missing_recipient", func(t *testing.T) {
		t.Parallel()
		d, err := NewDispatcher(&recordingMailer{}, DispatcherConfig{})
		require.NoError(t, err)
		require.ErrorIs(t, d.Enqueue("", Message{Subject: "nobody"}), ErrNoRecipient)
	})

	t.Run("hung_send_times_out", func(t *testing.T) {
		t.Parallel()
		mailer := &recordingMailer{block: make(chan struct{})}
		d, err := NewDispatcher(mailer, DispatcherConfig{QueueSize: 2, SendTimeout: 20 * time.Millisecond})
		require.NoError(t, err)
		d.Start(context.Background())

		require.NoError(t, d.Enqueue("", Message{To: "slow@example.com"}))

		done := make(chan struct{})
		go func() {
			d.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("dispatcher did not stop after send timeout")
		}
		require.Empty(t, mailer.messages())
	})

	t.Run("failed_send_can_be_retried", func(t *testing.T) {
		t.Parallel()
		mailer := &recordingMailer{fail: errors.New("relay refused")}
		d, err := NewDispatcher(mailer, DispatcherConfig{QueueSize: 2, DedupeSize: 4})
		require.NoError(t, err)
		d.Start(context.Background())

		require.NoError(t, d.Enqueue("won:a1:bob", Message{To: "bob@example.com"}))
		d.Stop()
		require.False(t, d.seen.Contains("won:a1:bob"))
	})
}

func TestNotifier(t *testing.T) {
	t.Parallel()

	mailer := &recordingMailer{}
	d, err := NewDispatcher(mailer, DispatcherConfig{QueueSize: 10, DedupeSize: 16})
	require.NoError(t, err)
	d.Start(context.Background())
	n := NewNotifier(d, "https://auctioneer.example.com/login")

	buyer := "bob"
	sold := models.Auction{
		AuctionID: "a1",
		BuyerID:   &buyer,
		SoldPrice: decimal.NewNullDecimal(decimal.RequireFromString("22")),
	}
	unsold := models.Auction{AuctionID: "a2"}
	owner := models.User{UserID: "owner", Username: "owner", Email: "owner@example.com"}
	bob := models.User{UserID: "bob", Username: "bob", Email: "bob@example.com"}

	ctx := context.Background()
	require.NoError(t, n.AuctionFinished(ctx, sold, owner))
	require.NoError(t, n.AuctionWon(ctx, sold, bob))
	require.NoError(t, n.AuctionFinished(ctx, unsold, owner))
	require.NoError(t, n.Registered(ctx, bob))
	// repeated settlement notice for the same auction is dropped
	require.NoError(t, n.AuctionWon(ctx, sold, bob))
	d.Stop()

	msgs := mailer.messages()
	require.Len(t, msgs, 4)

	byBody := map[string]Message{}
	for _, m := range msgs {
		byBody[strings.SplitN(m.Body, "\n", 2)[0]] = m
	}

	finished := byBody["Auction with id a1 has finished."]
	require.Equal(t, "owner@example.com", finished.To)
	require.Equal(t, "Auction finished", finished.Subject)
	require.Contains(t, finished.Body, "It sold for 22.00.")

	won := byBody["You won an auction with id a1."]
	require.Equal(t, "bob@example.com", won.To)
	require.Contains(t, won.Body, "22.00")

	require.Contains(t, byBody["Auction with id a2 has finished."].Body, "without bids")

	reg := byBody["Hello bob,"]
	require.Equal(t, "Registration Confirmation", reg.Subject)
	require.Contains(t, reg.Body, "https://auctioneer.example.com/login")
}

func TestLogMailer(t *testing.T) {
	t.Parallel()
	require.NoError(t, LogMailer{}.Send(context.Background(), Message{To: "x@example.com", Subject: "s", Body: "b"}))
}

// fakeSMTP accepts one plain SMTP session and returns the DATA payload
func fakeSMTP(t *testing.T) (addr string, payload <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			switch cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0]); cmd {
			case "EHLO", "HELO":
				_ = tp.PrintfLine("250 localhost")
			case "MAIL", "RCPT":
				_ = tp.PrintfLine("250 OK")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				data, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				out <- string(data)
				_ = tp.PrintfLine("250 queued")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("502 not implemented")
			}
		}
	}()
	return ln.Addr().String(), out
}

func TestSMTPMailer_Send(t *testing.T) {
	t.Parallel()
	addr, payload := fakeSMTP(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	m := NewSMTPMailer(SMTPConfig{Host: host, Port: port, From: "noreply@example.com"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, m.Send(ctx, Message{To: "bob@example.com", Subject: "Auction finished", Body: "line one\nline two"}))

	data := <-payload
	r := textproto.NewReader(bufio.NewReader(strings.NewReader(data)))
	hdr, err := r.ReadMIMEHeader()
	require.NoError(t, err)
	require.Equal(t, "bob@example.com", hdr.Get("To"))
	require.Equal(t, "Auction finished", hdr.Get("Subject"))
	require.Contains(t, data, "line one\nline two")
}

func TestSMTPMailer_DialFailure(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()
	port, _ := strconv.Atoi(portStr)

	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: port, From: "noreply@example.com"})
	err = m.Send(context.Background(), Message{To: "bob@example.com"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "notify: dial")
}
