package banking

import (
	"regexp"
	"strconv"
	"strings"
)

// Transaction is one parsed statement line. Amount is signed: deposits
// positive, withdrawals negative. Balance is the running balance when the
// statement layout carries one.
type Transaction struct {
	Date        string
	Description string
	Amount      float64
	Balance     *float64
}

const (
	dateToken   = `\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?|\d{4}-\d{2}-\d{2}|[A-Z][a-z]{2}\s+\d{1,2}`
	amountToken = `-?\(?\$?[\d,]+\.\d{2}\)?`
)

// minPatternCoverage is the share of candidate lines a single pattern must
// match before its output is trusted. Below this the whole document is
// rejected rather than scored from a low-confidence guess.
const minPatternCoverage = 0.5

// Line patterns in fixed priority order. OCR output varies by bank layout;
// the first pattern covering a majority of candidate lines wins.
var linePatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	// date  description  amount  running-balance
	{"date_desc_amount_balance", regexp.MustCompile(
		`^(` + dateToken + `)\s+(.+?)\s+(` + amountToken + `)\s+(` + amountToken + `)$`)},
	// date  description  amount  DR/CR  [running-balance]
	{"debit_credit_marker", regexp.MustCompile(
		`^(` + dateToken + `)\s+(.+?)\s+(` + amountToken + `)\s+(DR|CR|DEBIT|CREDIT)(?:\s+(` + amountToken + `))?$`)},
	// date  description  amount
	{"date_desc_amount", regexp.MustCompile(
		`^(` + dateToken + `)\s+(.+?)\s+(` + amountToken + `)$`)},
}

var (
	candidateLineRe   = regexp.MustCompile(`^(?:` + dateToken + `)\s`)
	openingBalanceRe  = regexp.MustCompile(`(?i)(?:opening|beginning)\s+balance\s*[:\s]\s*(` + amountToken + `)`)
	closingBalanceRe  = regexp.MustCompile(`(?i)(?:closing|ending)\s+balance\s*[:\s]\s*(` + amountToken + `)`)
	statementHeaderRe = regexp.MustCompile(`(?i)^\s*([A-Za-z&.' -]*bank[A-Za-z&.' -]*)\s*$`)
)

// statementText is the intermediate parse of an OCR'd statement.
type statementText struct {
	Transactions  []Transaction
	Pattern       string
	Coverage      float64
	StatedOpening *float64
	StatedClosing *float64
	BankName      string
	AccountType   string
}

// parseStatement extracts transactions and stated balances from raw OCR text.
// Returns ok=false when no pattern reaches minimum coverage over the
// candidate (date-prefixed) lines.
func parseStatement(ocrText string) (*statementText, bool) {
	lines := splitLines(ocrText)

	var candidates []string
	for _, line := range lines {
		if candidateLineRe.MatchString(line) {
			candidates = append(candidates, line)
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}

	for _, pattern := range linePatterns {
		txns, matched := parseWithPattern(pattern.re, pattern.name, candidates)
		coverage := float64(matched) / float64(len(candidates))
		if coverage >= minPatternCoverage {
			inferWithdrawalSigns(txns)
			st := &statementText{
				Transactions: txns,
				Pattern:      pattern.name,
				Coverage:     coverage,
			}
			scanHeaders(lines, st)
			return st, true
		}
	}
	return nil, false
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if trimmed := strings.TrimSpace(l); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func parseWithPattern(re *regexp.Regexp, name string, candidates []string) ([]Transaction, int) {
	var txns []Transaction
	matched := 0
	for _, line := range candidates {
		groups := re.FindStringSubmatch(line)
		if groups == nil {
			continue
		}
		matched++

		txn := Transaction{
			Date:        groups[1],
			Description: strings.TrimSpace(groups[2]),
		}
		amount, ok := parseAmount(groups[3])
		if !ok {
			matched--
			continue
		}

		switch name {
		case "date_desc_amount_balance":
			txn.Amount = amount
			if bal, ok := parseAmount(groups[4]); ok {
				txn.Balance = &bal
			}
		case "debit_credit_marker":
			marker := strings.ToUpper(groups[4])
			if marker == "DR" || marker == "DEBIT" {
				txn.Amount = -abs(amount)
			} else {
				txn.Amount = abs(amount)
			}
			if groups[5] != "" {
				if bal, ok := parseAmount(groups[5]); ok {
					txn.Balance = &bal
				}
			}
		default:
			txn.Amount = amount
		}

		txns = append(txns, txn)
	}
	return txns, matched
}

// inferWithdrawalSigns fixes unsigned withdrawal amounts using the running
// balance column: when a balance drops by the line's amount, the amount is a
// debit regardless of how it was printed.
func inferWithdrawalSigns(txns []Transaction) {
	for i := 1; i < len(txns); i++ {
		cur, prev := &txns[i], txns[i-1]
		if cur.Balance == nil || prev.Balance == nil || cur.Amount <= 0 {
			continue
		}
		delta := *cur.Balance - *prev.Balance
		if closeEnough(delta, -cur.Amount) {
			cur.Amount = -cur.Amount
		}
	}
}

func scanHeaders(lines []string, st *statementText) {
	for _, line := range lines {
		if st.StatedOpening == nil {
			if g := openingBalanceRe.FindStringSubmatch(line); g != nil {
				if v, ok := parseAmount(g[1]); ok {
					st.StatedOpening = &v
				}
			}
		}
		if st.StatedClosing == nil {
			if g := closingBalanceRe.FindStringSubmatch(line); g != nil {
				if v, ok := parseAmount(g[1]); ok {
					st.StatedClosing = &v
				}
			}
		}
		if st.BankName == "" {
			if g := statementHeaderRe.FindStringSubmatch(line); g != nil {
				st.BankName = strings.TrimSpace(g[1])
			}
		}
		if st.AccountType == "" {
			lower := strings.ToLower(line)
			if strings.Contains(lower, "checking") {
				st.AccountType = "checking"
			} else if strings.Contains(lower, "savings") {
				st.AccountType = "savings"
			}
		}
	}
}

// parseAmount handles "$1,234.56", "-45.00", and "(45.00)" (parenthesized
// negatives) as OCR emits them.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func closeEnough(a, b float64) bool {
	return abs(a-b) < 0.01
}
