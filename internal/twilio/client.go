package twilio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client sends SMS messages.
type Client interface {
	SendSMS(ctx context.Context, toPhoneNumber, message string) error
	IsConfigured() bool
}

type twilioClient struct {
	accountSID string
	authToken  string
	fromNumber string
	httpClient *http.Client
}

// NewClient returns a Twilio REST client.
func NewClient(accountSID, authToken, fromNumber string) Client {
	return &twilioClient{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (tc *twilioClient) IsConfigured() bool {
	return tc.accountSID != "" && tc.authToken != "" && tc.fromNumber != ""
}

// SendSMS performs a single best-effort dispatch through the Messages API.
func (tc *twilioClient) SendSMS(ctx context.Context, toPhoneNumber, message string) error {
	if !tc.IsConfigured() {
		return fmt.Errorf("twilio client not configured, sms to %s skipped", toPhoneNumber)
	}

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", tc.accountSID)
	data := url.Values{}
	data.Set("To", toPhoneNumber)
	data.Set("From", tc.fromNumber)
	data.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create twilio sms request: %w", err)
	}
	req.SetBasicAuth(tc.accountSID, tc.authToken)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send twilio sms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, resp.Body)
		return fmt.Errorf("twilio API returned non-success status: %d - %s", resp.StatusCode, buf.String())
	}
	return nil
}
