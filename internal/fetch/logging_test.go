package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"marketing-dashboard/backend/internal/cache"
	"marketing-dashboard/backend/internal/provider"
	"marketing-dashboard/backend/internal/provider/metaads"
	"marketing-dashboard/backend/internal/security"
	tenantdomain "marketing-dashboard/backend/internal/tenant/domain"
)

func TestFetch_TimeoutLogsOmitDecryptedCredentials(t *testing.T) {
	const secret = "SECRET-TOKEN"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := security.NewCipher(make([]byte, 32))
	require.NoError(t, err)
	bundle, _ := json.Marshal(map[string]string{"access_token": secret, "ad_account_id": "act_42"})
	ct, err := c.Encrypt(bundle, security.CredentialAAD("t-acme", provider.MetaAds))
	require.NoError(t, err)
	tenant := &tenantdomain.Tenant{ID: "t-acme", Subdomain: "acme", Credentials: map[string]string{provider.MetaAds: ct}}

	core, logs := observer.New(zap.DebugLevel)
	store := cache.New[*provider.Metrics]("metrics", cache.WithLogger(zap.New(core)))
	t.Cleanup(store.Close)
	meta := metaads.New(srv.URL, "", provider.NewHTTPClient(provider.MetaAds, srv.Client(), 0))
	orch := New(store, c, []provider.Fetcher{meta}, WithTimeout(50*time.Millisecond), WithLogger(zap.New(core)))

	res, err := orch.Fetch(context.Background(), tenant, provider.MetaAds)
	require.NoError(t, err)
	assert.Equal(t, "provider request timed out", res.Error)
	assert.NotContains(t, res.Message, secret)

	entries := logs.All()
	require.NotEmpty(t, entries, "fallback should be logged")
	for _, e := range entries {
		assert.NotContains(t, e.Message, secret)
		for k, v := range e.ContextMap() {
			assert.NotContains(t, fmt.Sprint(v), secret, "log field %q", k)
		}
	}
}
