package textextract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextPlainPassthrough(t *testing.T) {
	e := New()

	text, err := e.ExtractText([]byte("  Date,Description,Amount\n2024-03-01,Coffee,-4.50\n"))
	require.NoError(t, err)
	assert.Equal(t, "Date,Description,Amount\n2024-03-01,Coffee,-4.50", text)
}

func TestExtractTextEmptyInput(t *testing.T) {
	e := New()

	_, err := e.ExtractText([]byte("   \n\t "))
	assert.ErrorIs(t, err, ErrUnreadableDocument)
}

func TestExtractTextCorruptPDF(t *testing.T) {
	e := New()

	_, err := e.ExtractText([]byte("%PDF-1.7\nthis is not a real pdf body"))
	assert.Error(t, err)
}

func TestIsReadable(t *testing.T) {
	statement := "ACME BANK Statement\nAccount number 12345678\n" +
		"Opening balance 1,000.00\nClosing balance 950.00\n" +
		"2024-03-02 Coffee -50.00"
	assert.True(t, isReadable(statement))

	assert.False(t, isReadable("Bank"), "too short")

	garbage := strings.Repeat("þÃ©ð", 40) + " account"
	assert.False(t, isReadable(garbage), "mostly non-ascii garbage")

	noWords := strings.Repeat("lorem ipsum dolor sit amet ", 10)
	assert.False(t, isReadable(noWords), "readable but not a statement")
}

func TestReadableRatio(t *testing.T) {
	assert.Equal(t, float64(0), readableRatio(""))
	assert.Equal(t, float64(1), readableRatio("Plain ASCII text, 100% readable."))
	assert.Less(t, readableRatio(strings.Repeat("þÿ", 50)), 0.1)
}
