package clients

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

const ethDialTimeout = 10 * time.Second

// NewEthClient dials the first reachable RPC endpoint from the given list.
func NewEthClient(rpcURL string, fallbackURLs []string) (*ethclient.Client, error) {
	urls := append([]string{rpcURL}, fallbackURLs...)

	var lastErr error
	for _, url := range urls {
		ctx, cancel := context.WithTimeout(context.Background(), ethDialTimeout)
		client, err := ethclient.DialContext(ctx, url)
		cancel()

		if err == nil {
			return client, nil
		}
		lastErr = errors.Wrapf(err, "connect to RPC %s", url)
	}

	return nil, errors.Wrap(lastErr, "all RPC connection attempts failed")
}
