package notify

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	bidding "github.com/philippspitzley/auctioneer/internal/biddingService"
	"github.com/philippspitzley/auctioneer/internal/models"
)

const (
	subjectAuctionFinished = "Auction finished"
	subjectRegistration    = "Registration Confirmation"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "finished"}}Auction with id {{.Auction.AuctionID}} has finished.
{{if .Auction.SoldPrice.Valid}}It sold for {{.Auction.SoldPrice.Decimal.StringFixed 2}}.{{else}}It ended without bids.{{end}}
{{end}}
{{define "won"}}You won an auction with id {{.Auction.AuctionID}}.
Your winning bid: {{.Auction.SoldPrice.Decimal.StringFixed 2}}.
{{end}}
{{define "registered"}}Hello {{.User.Username}},

your Auctioneer account is ready. Sign in here: {{.LoginURL}}
{{end}}`))

var _ bidding.Notifier = (*Notifier)(nil)

// Notifier turns marketplace events into queued emails
type Notifier struct {
	dispatcher *Dispatcher
	loginURL   string
}

func NewNotifier(d *Dispatcher, loginURL string) *Notifier {
	return &Notifier{dispatcher: d, loginURL: loginURL}
}

// AuctionFinished tells the owner their auction is over
func (n *Notifier) AuctionFinished(_ context.Context, auction models.Auction, owner models.User) error {
	body, err := render("finished", map[string]any{"Auction": auction})
	if err != nil {
		return err
	}
	return n.dispatcher.Enqueue("finished:"+auction.AuctionID+":"+owner.UserID, Message{
		To:      owner.Email,
		Subject: subjectAuctionFinished,
		Body:    body,
	})
}

// AuctionWon tells the buyer they won
func (n *Notifier) AuctionWon(_ context.Context, auction models.Auction, buyer models.User) error {
	body, err := render("won", map[string]any{"Auction": auction})
	if err != nil {
		return err
	}
	return n.dispatcher.Enqueue("won:"+auction.AuctionID+":"+buyer.UserID, Message{
		To:      buyer.Email,
		Subject: subjectAuctionFinished,
		Body:    body,
	})
}

// Registered sends the registration confirmation
func (n *Notifier) Registered(_ context.Context, user models.User) error {
	body, err := render("registered", map[string]any{"User": user, "LoginURL": n.loginURL})
	if err != nil {
		return err
	}
	return n.dispatcher.Enqueue("registered:"+user.UserID, Message{
		To:      user.Email,
		Subject: subjectRegistration,
		Body:    body,
	})
}

func render(name string, data any) (string, error) {
	var b bytes.Buffer
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("notify: render %s: %w", name, err)
	}
	return b.String(), nil
}
