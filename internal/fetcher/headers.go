package fetcher

// DefaultUserAgent is a desktop browser user agent. Many hidden services
// refuse obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_9_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/39.0.2171.95 Safari/537.36"

const acceptEncoding = "gzip, deflate, br"

// baseHeaders is sent with every request.
var baseHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.8",
	"Connection":      "keep-alive",
	"Referer":         "https://www.google.com/",
}
