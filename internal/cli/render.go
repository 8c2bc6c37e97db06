package cli

import (
	"fmt"
	"strings"

	"github.com/mdifflin/paperflow/internal/model"
)

// RenderOrderResult formats the final order response for the terminal.
func RenderOrderResult(result *model.OrderResult) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Order summary"))
	b.WriteString("\n")

	if result.State == model.StateFailed {
		b.WriteString(ErrorStyle.Render("Order failed: " + result.Explanation))
		b.WriteString("\n")
		return b.String()
	}

	for _, item := range result.Items {
		line := fmt.Sprintf("  %-28s x%-5d %s", item.Item.Name, item.Item.Quantity,
			classificationLabel(item))
		switch item.Outcome {
		case model.OutcomeSold:
			b.WriteString(SuccessStyle.Render(line))
		case model.OutcomeMissing:
			b.WriteString(ErrorStyle.Render(line))
		default:
			b.WriteString(WarningStyle.Render(line))
		}
		if item.Quote != nil {
			b.WriteString(SubtleStyle.Render(fmt.Sprintf("  @ $%s = $%s",
				item.Quote.UnitPrice.StringFixed(2), item.Quote.TotalPrice.StringFixed(2))))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if result.Discount {
		b.WriteString(fmt.Sprintf("  Subtotal: $%s\n", result.Subtotal.StringFixed(2)))
		b.WriteString(SuccessStyle.Render(
			fmt.Sprintf("  Total:    $%s (bulk discount applied)", result.Total.StringFixed(2))))
		b.WriteString("\n")
	} else {
		b.WriteString(BoldStyle.Render(fmt.Sprintf("  Total:    $%s", result.Total.StringFixed(2))))
		b.WriteString("\n")
	}

	if result.Delivery != nil {
		if result.Delivery.Feasible {
			b.WriteString(SuccessStyle.Render("  Delivery: " + result.Delivery.Reason))
		} else {
			b.WriteString(WarningStyle.Render("  Delivery: " + result.Delivery.Reason))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(result.Explanation)
	b.WriteString("\n")
	return b.String()
}

func classificationLabel(item model.ItemResult) string {
	switch item.Outcome {
	case model.OutcomeSold:
		if item.Classification == model.ClassReordered {
			return "sold (restocked)"
		}
		return "sold"
	case model.OutcomeMissing:
		return "missing from catalog"
	case model.OutcomePricingGap:
		return "excluded: no price (retryable)"
	case model.OutcomeInsufficientStock:
		return "excluded: stock conflict (retryable)"
	default:
		return strings.ToLower(string(item.Classification))
	}
}
