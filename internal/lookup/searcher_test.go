package lookup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balcao-erp/balcao-erp/internal/sale"
)

type stubSource struct {
	mu           sync.Mutex
	clientCalls  int
	productCalls int
	clients      []sale.Client
	products     []sale.Product
	clientsErr   error
}

func (s *stubSource) SearchClients(ctx context.Context, fragment string) ([]sale.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientCalls++
	return s.clients, s.clientsErr
}

func (s *stubSource) SearchProducts(ctx context.Context, fragment string) ([]sale.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productCalls++
	return s.products, nil
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func TestSearcherCachesResults(t *testing.T) {
	source := &stubSource{clients: []sale.Client{{ID: 1, Name: "João"}}}
	searcher := NewSearcher(source, testRedis(t), time.Minute, nil)

	first, err := searcher.Clients(context.Background(), "jo")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := searcher.Clients(context.Background(), "jo")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.clientCalls, "second call served from cache")
}

func TestSearcherCacheKeyFoldsAccents(t *testing.T) {
	source := &stubSource{clients: []sale.Client{{ID: 1, Name: "João"}}}
	searcher := NewSearcher(source, testRedis(t), time.Minute, nil)

	_, err := searcher.Clients(context.Background(), "João")
	require.NoError(t, err)
	_, err = searcher.Clients(context.Background(), "joao")
	require.NoError(t, err)

	assert.Equal(t, 1, source.clientCalls, "accented and plain fragments share a key")
}

func TestSearcherWorksWithoutCache(t *testing.T) {
	source := &stubSource{products: []sale.Product{{ID: 1, Name: "Arroz"}}}
	searcher := NewSearcher(source, nil, time.Minute, nil)

	for i := 0; i < 2; i++ {
		results, err := searcher.Products(context.Background(), "ar")
		require.NoError(t, err)
		require.Len(t, results, 1)
	}
	assert.Equal(t, 2, source.productCalls)
}

func TestSearcherPropagatesSourceErrors(t *testing.T) {
	source := &stubSource{clientsErr: errors.New("backend down")}
	searcher := NewSearcher(source, nil, time.Minute, nil)

	_, err := searcher.Clients(context.Background(), "jo")
	require.Error(t, err)
}

func TestSearcherSortsCandidatesForDisplay(t *testing.T) {
	source := &stubSource{clients: []sale.Client{
		{ID: 1, Name: "Otávio"},
		{ID: 2, Name: "Álvaro"},
		{ID: 3, Name: "Óscar"},
		{ID: 4, Name: "ana"},
	}}
	searcher := NewSearcher(source, nil, time.Minute, nil)

	results, err := searcher.Clients(context.Background(), "xx")
	require.NoError(t, err)

	names := make([]string, len(results))
	for i, c := range results {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Álvaro", "ana", "Óscar", "Otávio"}, names,
		"accented names sort where a pt-BR reader expects")
}

func TestFold(t *testing.T) {
	assert.Equal(t, "joao", Fold("JoÃo"))
	assert.Equal(t, "acucar cristal", Fold("Açúcar Cristal"))
	assert.Equal(t, "arroz", Fold("arroz"))
}
