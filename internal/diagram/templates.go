package diagram

import (
	_ "embed"
)

var (
	// EmptyBPMN is the document a new modeler starts from: one start event.
	//go:embed templates/empty.bpmn
	EmptyBPMN string

	// SampleOrderBPMN is the order review process used by the offline dataset.
	//go:embed templates/order.bpmn
	SampleOrderBPMN string

	// SampleShippingBPMN is the shipping process used by the offline dataset.
	//go:embed templates/shipping.bpmn
	SampleShippingBPMN string

	// SampleExpenseBPMN is an approval process with decision tasks.
	//go:embed templates/expense.bpmn
	SampleExpenseBPMN string
)

// Samples lists the bundled sample diagrams by id.
func Samples() map[string]string {
	return map[string]string{
		"order-processing":    SampleOrderBPMN,
		"shipping-management": SampleShippingBPMN,
		"expense-approval":    SampleExpenseBPMN,
	}
}
