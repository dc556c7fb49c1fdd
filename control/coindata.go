package control

import (
	"encoding/csv"
	"os"
	"strings"

	"github.com/StudioSol/set"
)

// CoinList holds the symbol sets the alt strategies filter against.
// Stable assets are never traded; option assets are leveraged-token
// style products to skip.
type CoinList struct {
	Stable *set.LinkedHashSetString
	Option *set.LinkedHashSetString
}

// DefaultCoinList is used when no coin-data file is configured.
func DefaultCoinList() CoinList {
	stable := set.NewLinkedHashSetString("USDT", "BUSD", "PAX", "TUSD", "USDC", "NGN", "USDS", "EUR")
	option := set.NewLinkedHashSetString("BULL", "BEAR", "UP", "DOWN")
	return CoinList{Stable: stable, Option: option}
}

// ReadCoinList parses a CSV with stable_list and option_list columns,
// whitespace stripped, blank cells skipped.
func ReadCoinList(path string) (CoinList, error) {
	file, err := os.Open(path)
	if err != nil {
		return CoinList{}, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return CoinList{}, err
	}

	list := CoinList{
		Stable: set.NewLinkedHashSetString(),
		Option: set.NewLinkedHashSetString(),
	}
	if len(rows) == 0 {
		return list, nil
	}

	stableCol, optionCol := -1, -1
	for i, name := range rows[0] {
		switch strings.TrimSpace(name) {
		case "stable_list":
			stableCol = i
		case "option_list":
			optionCol = i
		}
	}

	for _, row := range rows[1:] {
		if stableCol >= 0 && stableCol < len(row) {
			if v := strings.TrimSpace(row[stableCol]); v != "" {
				list.Stable.Add(v)
			}
		}
		if optionCol >= 0 && optionCol < len(row) {
			if v := strings.TrimSpace(row[optionCol]); v != "" {
				list.Option.Add(v)
			}
		}
	}
	return list, nil
}
