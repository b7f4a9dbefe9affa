package extractor

// Config tunes the extractor. Every field is optional.
type Config struct {
	Keywords         []string `yaml:"keywords"`
	ShortenerDomains []string `yaml:"shortener_domains"`
	UPISuffixes      []string `yaml:"upi_suffixes"`
}

// DefaultKeywords are matched case-insensitively as substrings.
var DefaultKeywords = []string{
	"urgent",
	"immediately",
	"otp",
	"blocked",
	"suspended",
	"verify now",
	"kyc",
	"account will be",
	"click here",
	"click the link",
	"refund",
	"lottery",
	"prize",
	"you have won",
	"cashback",
	"legal action",
	"arrest",
	"police",
	"penalty",
	"upi pin",
	"cvv",
	"password",
	"pay now",
	"send money",
	"processing fee",
	"expire",
	"last chance",
	"customs",
	"electricity bill",
}

// DefaultShortenerDomains are link shorteners that hide the real destination.
var DefaultShortenerDomains = []string{
	"bit.ly",
	"tinyurl.com",
	"goo.gl",
	"t.co",
	"is.gd",
	"cutt.ly",
	"rb.gy",
	"ow.ly",
	"shorturl.at",
	"tiny.cc",
	"rebrand.ly",
}

// DefaultUPISuffixes are well known payment service provider handles.
var DefaultUPISuffixes = []string{
	"upi", "ybl", "ibl", "axl", "apl", "paytm", "okaxis", "oksbi", "okicici",
	"okhdfcbank", "sbi", "icici", "hdfcbank", "axisbank", "kotak", "pnb",
	"boi", "barodampay", "unionbank", "federal", "indus", "yesbank", "idfcbank",
	"airtel", "jio", "freecharge", "postbank", "waicici", "wahdfcbank",
}

func (c Config) withDefaults() Config {
	if len(c.Keywords) == 0 {
		c.Keywords = DefaultKeywords
	}
	if len(c.ShortenerDomains) == 0 {
		c.ShortenerDomains = DefaultShortenerDomains
	}
	if len(c.UPISuffixes) == 0 {
		c.UPISuffixes = DefaultUPISuffixes
	}
	return c
}
