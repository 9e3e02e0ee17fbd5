package synthetic

import (
	"strings"

	"github.com/rxtech-lab/argo-papertrade/internal/types"
)

const MarketKOSPI = "KOSPI"

var catalog = []types.Symbol{
	{Code: "005930", Name: "삼성전자", Market: MarketKOSPI},
	{Code: "000660", Name: "SK하이닉스", Market: MarketKOSPI},
	{Code: "035420", Name: "NAVER", Market: MarketKOSPI},
	{Code: "035720", Name: "카카오", Market: MarketKOSPI},
	{Code: "207940", Name: "삼성바이오로직스", Market: MarketKOSPI},
	{Code: "068270", Name: "셀트리온", Market: MarketKOSPI},
	{Code: "373220", Name: "LG에너지솔루션", Market: MarketKOSPI},
	{Code: "051910", Name: "LG화학", Market: MarketKOSPI},
	{Code: "006400", Name: "삼성SDI", Market: MarketKOSPI},
	{Code: "028260", Name: "삼성물산", Market: MarketKOSPI},
}

// Catalog returns a copy of the static symbol list.
func Catalog() []types.Symbol {
	return append([]types.Symbol(nil), catalog...)
}

// Search matches keyword as a substring of the code or the name. An empty keyword
// returns the whole catalog.
func Search(keyword string) []types.Symbol {
	if keyword == "" {
		return Catalog()
	}

	matches := []types.Symbol{}
	for _, s := range catalog {
		if strings.Contains(s.Name, keyword) || strings.Contains(s.Code, keyword) {
			matches = append(matches, s)
		}
	}

	return matches
}

// PopularCodes lists the symbols shown on the market overview.
func PopularCodes() []string {
	codes := make([]string, len(catalog))
	for i, s := range catalog {
		codes[i] = s.Code
	}

	return codes
}
