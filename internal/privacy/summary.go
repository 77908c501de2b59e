package privacy

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// SummaryOptions controls Summarize output.
type SummaryOptions struct {
	// ConversationCount adds a "Processed N conversations" line when positive.
	ConversationCount int
	// Locale is a BCP 47 tag. Unsupported locales fall back to English.
	Locale string
}

type summaryText struct {
	none      string
	processed string
	total     string
	labels    map[Category]string
}

var summaryLocales = []language.Tag{language.English, language.Vietnamese}

var summaryMatcher = language.NewMatcher(summaryLocales)

var summaryTexts = []summaryText{
	{
		none:      "No sensitive information detected.",
		processed: "Processed %d conversations",
		total:     "Anonymized %d sensitive items:",
		labels: map[Category]string{
			CategoryPhone:           "Phone numbers",
			CategoryEmail:           "Email addresses",
			CategoryOTP:             "OTP codes",
			CategoryDateOfBirth:     "Dates of birth",
			CategoryNationalID:      "ID/Passport numbers",
			CategoryBankAccount:     "Bank account numbers",
			CategoryCreditCard:      "Credit card numbers",
			CategoryWalletAddress:   "Wallet addresses",
			CategoryTransactionID:   "Transaction IDs",
			CategoryReferenceNumber: "Reference numbers",
		},
	},
	{
		none:      "Không phát hiện thông tin nhạy cảm.",
		processed: "Đã xử lý %d cuộc hội thoại",
		total:     "Đã ẩn danh %d mục nhạy cảm:",
		labels: map[Category]string{
			CategoryPhone:           "Số điện thoại",
			CategoryEmail:           "Địa chỉ email",
			CategoryOTP:             "Mã OTP",
			CategoryDateOfBirth:     "Ngày sinh",
			CategoryNationalID:      "Số CMND/Hộ chiếu",
			CategoryBankAccount:     "Số tài khoản ngân hàng",
			CategoryCreditCard:      "Số thẻ tín dụng",
			CategoryWalletAddress:   "Địa chỉ ví",
			CategoryTransactionID:   "Mã giao dịch",
			CategoryReferenceNumber: "Số tham chiếu",
		},
	},
}

func textsFor(locale string) summaryText {
	if locale == "" {
		return summaryTexts[0]
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return summaryTexts[0]
	}
	_, idx, conf := summaryMatcher.Match(tag)
	if conf == language.No {
		return summaryTexts[0]
	}
	return summaryTexts[idx]
}

// Summarize renders a human readable summary of a report. Original values
// never appear in it.
func Summarize(report Report, opts SummaryOptions) string {
	t := textsFor(opts.Locale)

	if report.TotalReplacements == 0 {
		if opts.ConversationCount > 0 {
			return fmt.Sprintf(t.processed, opts.ConversationCount) + ". " + t.none
		}
		return t.none
	}

	var lines []string
	if opts.ConversationCount > 0 {
		lines = append(lines, fmt.Sprintf(t.processed, opts.ConversationCount))
	}
	lines = append(lines, fmt.Sprintf(t.total, report.TotalReplacements), "")

	for _, cat := range CategoryOrder {
		n := report.ReplacementsByType[cat]
		if n == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s: %d", t.labels[cat], n))
	}
	// Categories outside the catalog still get a line.
	for cat, n := range report.ReplacementsByType {
		if _, known := t.labels[cat]; known || n == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s: %d", string(cat), n))
	}

	return strings.Join(lines, "\n")
}
