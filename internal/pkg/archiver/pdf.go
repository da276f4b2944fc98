package archiver

import (
	"bytes"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfPageCount validates a rendered page.pdf via pdfcpu and returns its
// page count. A PDF that fails validation still gets uploaded -- the
// headless renderer's output is taken as-is -- but the page count is
// then omitted from the artifact's metadata.
func pdfPageCount(data []byte) (int, bool) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return 0, false
	}
	return ctx.PageCount, true
}
