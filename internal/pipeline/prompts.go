package pipeline

import (
	"fmt"
	"strings"
)

// buildExtractionPrompt is the first user turn: instructions plus the full
// statement text. The text is sent once; later turns carry only feedback.
func buildExtractionPrompt(statementText, timezone string) string {
	var b strings.Builder

	b.WriteString("You are a bank statement extraction engine.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Read the bank statement text below and extract its metadata and ALL transactions.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a single JSON object.\n\n")

	b.WriteString("The object must have these fields:\n")
	b.WriteString("- \"bank_name\": string\n")
	b.WriteString("- \"account_number\": string (may be partial/masked, copy as printed)\n")
	b.WriteString("- \"statement_date\": string \"YYYY-MM-DD\" or null\n")
	b.WriteString("- \"period_start\": string \"YYYY-MM-DD\"\n")
	b.WriteString("- \"period_end\": string \"YYYY-MM-DD\"\n")
	b.WriteString("- \"opening_balance\": number\n")
	b.WriteString("- \"closing_balance\": number\n")
	b.WriteString("- \"total_deposits\": number or null\n")
	b.WriteString("- \"total_withdrawals\": number or null\n")
	b.WriteString("- \"transactions\": array of objects with:\n")
	b.WriteString("    \"date\": string \"YYYY-MM-DD\"\n")
	b.WriteString("    \"description\": string\n")
	b.WriteString("    \"amount\": number (positive for money IN, negative for money OUT)\n")
	b.WriteString("    \"balance\": number or null (running balance if printed)\n")
	b.WriteString("    \"type\": \"credit\" or \"debit\"\n")
	b.WriteString("    \"reference\": string or omit\n\n")

	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- Interpret dates in the %s timezone when the statement omits the year or uses local formats.\n", timezone)
	b.WriteString("- Keep transactions in the order they appear in the document.\n")
	b.WriteString("- If the statement has separate debit/credit columns, convert to a single signed \"amount\".\n")
	b.WriteString("- opening_balance plus the sum of all transaction amounts must equal closing_balance.\n")
	b.WriteString("- If the document is not a bank statement or cannot be read, return {\"status\": \"error\", \"error_message\": \"...\"} instead.\n")
	b.WriteString("- Return ONLY valid raw JSON. Do NOT wrap the response in code fences.\n\n")

	b.WriteString("Statement text:\n")
	b.WriteString("-----\n")
	b.WriteString(statementText)
	b.WriteString("\n-----\n")

	return b.String()
}

// buildFeedbackPrompt describes what failed validation so the model can
// correct its previous answer. Dropped-date descriptions are truncated to
// the first five.
func buildFeedbackPrompt(res VerificationResult, droppedCount int, droppedDescriptions []string) string {
	var b strings.Builder

	b.WriteString("Your previous extraction did not validate. Please correct it and return the full JSON object again.\n\n")

	if !res.IsBalanced {
		fmt.Fprintf(&b,
			"- The opening balance plus the sum of transaction amounts differs from the closing balance by %s. "+
				"Re-check transaction amounts and signs, and look for transactions you may have missed or invented.\n",
			res.Discrepancy.String())
	}

	if droppedCount > 0 {
		fmt.Fprintf(&b, "- %d transaction(s) had invalid or unparseable dates and were dropped. "+
			"All dates must be \"YYYY-MM-DD\". Affected descriptions include:\n", droppedCount)
		max := len(droppedDescriptions)
		if max > 5 {
			max = 5
		}
		for _, desc := range droppedDescriptions[:max] {
			fmt.Fprintf(&b, "    - %s\n", desc)
		}
	}

	b.WriteString("\nReturn ONLY the corrected raw JSON object, no code fences, no commentary.\n")
	return b.String()
}
