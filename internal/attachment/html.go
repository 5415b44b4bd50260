package attachment

import (
	"fmt"
	"strings"
)

const imageWidth = 500

// ImageHTML renders one normalized file as an embedded data-URI image
// block for a ticket's details_html.
func ImageHTML(f File) string {
	return fmt.Sprintf(
		`<br><p><strong>Attached Screenshot: %s</strong></p><img src="data:%s;base64,%s" width="%d"><br>`,
		f.Filename, f.MimeType, f.Content, imageWidth)
}

// MergeIntoDetails inserts the attachment image blocks into details
// HTML, in input order. The blocks go immediately after the first
// closing tag of the user-info table so they sit above the free-text
// description; if no table is present they are appended.
func MergeIntoDetails(detailsHTML string, files []File) string {
	if len(files) == 0 {
		return detailsHTML
	}

	var blocks strings.Builder
	for _, f := range files {
		blocks.WriteString(ImageHTML(f))
	}

	if before, after, ok := strings.Cut(detailsHTML, "</table>"); ok {
		return before + "</table>" + blocks.String() + after
	}
	return detailsHTML + blocks.String()
}
