package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tiendas-backend/pkg/config"
)

type fakeSessionAPI struct {
	created  *stripe.CheckoutSessionParams
	getID    string
	getParam *stripe.CheckoutSessionParams
	session  *stripe.CheckoutSession
	err      error
}

func (f *fakeSessionAPI) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.created = params
	return f.session, f.err
}

func (f *fakeSessionAPI) Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.getID = id
	f.getParam = params
	return f.session, f.err
}

func TestCreateSessionBuildsPaymentModeParams(t *testing.T) {
	api := &fakeSessionAPI{session: &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1", Status: stripe.CheckoutSessionStatusOpen}}
	c := &Client{sessions: api}

	session, err := c.CreateSession(context.Background(), CreateSessionInput{
		Lines: []LineItem{
			{Name: "Cafe Yungas", UnitAmount: 2500, Quantity: 2},
			{Name: "Shipping", UnitAmount: 750, Quantity: 1},
		},
		Currency:       "BOB",
		SuccessURL:     "https://shop.test/ok",
		CancelURL:      "https://shop.test/cancel",
		CustomerEmail:  "ana@example.com",
		Metadata:       map[string]string{"tenant_id": "t1"},
		IdempotencyKey: "idem-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.False(t, session.Complete())

	params := api.created
	require.NotNil(t, params)
	assert.Equal(t, "payment", *params.Mode)
	assert.Equal(t, "ana@example.com", *params.CustomerEmail)
	assert.Equal(t, "idem-1", *params.IdempotencyKey)
	assert.Equal(t, "t1", params.Metadata["tenant_id"])
	require.Len(t, params.LineItems, 2)
	assert.Equal(t, "bob", *params.LineItems[0].PriceData.Currency)
	assert.EqualValues(t, 2500, *params.LineItems[0].PriceData.UnitAmount)
	assert.EqualValues(t, 2, *params.LineItems[0].Quantity)
	assert.Equal(t, "Shipping", *params.LineItems[1].PriceData.ProductData.Name)
}

func TestCreateSessionRequiresLines(t *testing.T) {
	c := &Client{sessions: &fakeSessionAPI{}}
	_, err := c.CreateSession(context.Background(), CreateSessionInput{})
	assert.Error(t, err)
}

func TestRetrieveSessionMapsFields(t *testing.T) {
	api := &fakeSessionAPI{session: &stripe.CheckoutSession{
		ID:            "cs_test_2",
		Status:        stripe.CheckoutSessionStatusComplete,
		AmountTotal:   107500,
		Currency:      "bob",
		Metadata:      map[string]string{"customer_id": "c1"},
		PaymentIntent: &stripe.PaymentIntent{ID: "pi_123"},
	}}
	c := &Client{sessions: api}

	session, err := c.RetrieveSession(context.Background(), "cs_test_2")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_2", api.getID)
	assert.Contains(t, api.getParam.Expand, stripe.String("payment_intent"))
	assert.True(t, session.Complete())
	assert.EqualValues(t, 107500, session.AmountTotal)
	assert.Equal(t, "pi_123", session.PaymentIntentID)
	assert.Equal(t, "c1", session.Metadata["customer_id"])
}

func TestRetrieveSessionWrapsErrors(t *testing.T) {
	c := &Client{sessions: &fakeSessionAPI{err: errors.New("boom")}}
	_, err := c.RetrieveSession(context.Background(), "cs_x")
	assert.ErrorContains(t, err, "retrieve checkout session")

	_, err = c.RetrieveSession(context.Background(), " ")
	assert.Error(t, err)
}

func TestConstructEventVerifiesSignature(t *testing.T) {
	c := &Client{signingSecret: "whsec_test"}
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_test_3"}}}`)

	event, err := c.ConstructEvent(payload, sign(payload, "whsec_test", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.EqualValues(t, EventCheckoutSessionCompleted, event.Type)

	_, err = c.ConstructEvent(payload, sign(payload, "whsec_other", time.Now()))
	assert.Error(t, err)
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.StripeConfig{Secret: "whsec"}, nil)
	assert.ErrorIs(t, err, errAPIKeyRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1"}, nil)
	assert.ErrorIs(t, err, errSecretRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_live_1", Secret: "whsec", Env: "test"}, nil)
	assert.Error(t, err)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1", Secret: "whsec", Env: "staging"}, nil)
	assert.ErrorIs(t, err, errInvalidStripeEnv)

	c, err := NewClient(ctx, config.StripeConfig{APIKey: "rk_live_1", Secret: "whsec", Env: "LIVE"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "live", c.Environment())
}

func sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
