package nets

import (
	"net/http"
	"net/url"
	"time"

	"github.com/reusee/distill/cmds"
	"github.com/reusee/distill/configs"
	"github.com/reusee/distill/vars"
)

type HTTPClient = *http.Client

// HTTPTimeout bounds a whole request including the streamed body. Zero means no limit.
type HTTPTimeout time.Duration

var httpTimeoutFlag = cmds.Var[string]("-http-timeout")

func (Module) HTTPTimeout(
	loader configs.Loader,
) HTTPTimeout {
	str := vars.FirstNonZero(
		*httpTimeoutFlag,
		configs.First[string](loader, "http_timeout"),
	)
	if str == "" {
		return 0
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		panic(err)
	}
	return HTTPTimeout(d)
}

func (Module) HTTPClient(
	dialer Dialer,
	getURL GetProxyURL,
	timeout HTTPTimeout,
	isLocalAddr IsLocalAddr,
) HTTPClient {
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConnsPerHost: 16,
	}
	if u, err := getURL(); err == nil && isHTTPProxy(u) {
		transport.Proxy = func(req *http.Request) (*url.URL, error) {
			if local, err := isLocalAddr(req.URL.Host); err == nil && local {
				return nil, nil
			}
			return u, nil
		}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(timeout),
	}
}
