package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// backendSchemes はバックエンドURLとして許可するスキーム。
var backendSchemes = []string{"http", "https"}

// internalNetworks は厳格モードで接続を拒否するネットワーク範囲。
var internalNetworks = mustParseCIDRs(
	"10.0.0.0/8",     // RFC 1918
	"172.16.0.0/12",  // RFC 1918
	"192.168.0.0/16", // RFC 1918
	"127.0.0.0/8",    // ループバック
	"169.254.0.0/16", // リンクローカル（メタデータIPを含む）
	"0.0.0.0/8",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR %s: %v", cidr, err))
		}
		networks = append(networks, n)
	}
	return networks
}

// EgressConfig はバックエンド向けHTTPクライアントの設定。
type EgressConfig struct {
	// BackendURL はバックエンドのベースURL。
	BackendURL string
	// Timeout は1リクエストあたりの上限時間。0は無制限。
	Timeout time.Duration
	// Strict がtrueの場合、内部ネットワークへの接続を拒否し、
	// 接続先ポートをBackendURLのポートに限定する。
	Strict bool
}

// NewBackendHTTPClient はバックエンド呼び出し用のHTTPクライアントを生成する。
// 厳格モードではsafeurlのクライアントを使い、DNS解決後のIPアドレスもDialer側で検証する。
func NewBackendHTTPClient(cfg EgressConfig) (*http.Client, error) {
	if !cfg.Strict {
		return &http.Client{Timeout: cfg.Timeout}, nil
	}

	if err := ValidateBackendURL(cfg.BackendURL); err != nil {
		return nil, err
	}
	port, err := backendPort(cfg.BackendURL)
	if err != nil {
		return nil, err
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(cfg.Timeout).
		SetAllowedSchemes(backendSchemes...).
		SetAllowedPorts(port).
		Build()

	return safeurl.Client(config).Client, nil
}

// ValidateBackendURL はバックエンドURLが外部の公開ホストを指しているかを静的に検証する。
// DNS解決は行わない。解決後のアドレスはNewBackendHTTPClientのクライアントが検証する。
func ValidateBackendURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isBackendScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, backendSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isInternalIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

// backendPort はURLの接続先ポートを返す。省略時はスキームの既定ポート。
func backendPort(rawURL string) (int, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("invalid URL: %w", err)
	}
	if p := parsed.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return 0, fmt.Errorf("invalid port: %s", p)
		}
		return n, nil
	}
	if strings.EqualFold(parsed.Scheme, "https") {
		return 443, nil
	}
	return 80, nil
}

func isBackendScheme(scheme string) bool {
	for _, s := range backendSchemes {
		if s == scheme {
			return true
		}
	}
	return false
}

func isInternalIP(ip net.IP) bool {
	for _, n := range internalNetworks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
