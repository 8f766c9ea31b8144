package usecase

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/domain/model"
)

// Admin alert bodies are Telegram HTML. Every user supplied value goes
// through html.EscapeString.

func money(amount decimal.Decimal, currency string) string {
	if currency == "" {
		return amount.StringFixed(2)
	}
	return amount.StringFixed(2) + " " + currency
}

func productName(p *model.Product) string {
	if p.IsZero() {
		return "Unknown product"
	}
	return p.Name
}

func newOrderMessage(o *model.Order, p *model.Product, u *model.User, currency string) string {
	var b strings.Builder
	b.WriteString("🛒 <b>New Order</b>\n\n")
	fmt.Fprintf(&b, "Product: %s\n", html.EscapeString(productName(p)))
	fmt.Fprintf(&b, "Customer: %s\n", html.EscapeString(u.DisplayName()))
	if u != nil && u.Username != "" {
		fmt.Fprintf(&b, "Username: @%s\n", html.EscapeString(u.Username))
	}
	fmt.Fprintf(&b, "Amount: %s\n", money(o.TotalAmount, currency))
	if o.PaymentType == model.PaymentTypeInstallment && o.InstallmentMonths != nil {
		fmt.Fprintf(&b, "Payment: installments (%d months)\n", *o.InstallmentMonths)
	} else {
		b.WriteString("Payment: full\n")
	}
	fmt.Fprintf(&b, "Order: <code>%s</code>", o.ID)
	return b.String()
}

func paymentSuccessMessage(pay *model.Payment, o *model.Order, p *model.Product, u *model.User, fullyPaid bool) string {
	var b strings.Builder
	b.WriteString("✅ <b>Payment Received</b>\n\n")
	fmt.Fprintf(&b, "Product: %s\n", html.EscapeString(productName(p)))
	fmt.Fprintf(&b, "Customer: %s\n", html.EscapeString(u.DisplayName()))
	fmt.Fprintf(&b, "Amount: %s\n", money(pay.Amount, pay.Currency))
	if pay.InstallmentNumber != nil {
		if o.InstallmentMonths != nil {
			fmt.Fprintf(&b, "Installment: %d of %d\n", *pay.InstallmentNumber, *o.InstallmentMonths)
		} else {
			fmt.Fprintf(&b, "Installment: %d\n", *pay.InstallmentNumber)
		}
	}
	if pay.PaymentMethod != nil && *pay.PaymentMethod != "" {
		fmt.Fprintf(&b, "Method: %s\n", html.EscapeString(*pay.PaymentMethod))
	}
	fmt.Fprintf(&b, "Paid so far: %s of %s\n", money(o.PaidAmount, pay.Currency), money(o.TotalAmount, pay.Currency))
	if fullyPaid {
		b.WriteString("Order is now fully paid.\n")
	}
	fmt.Fprintf(&b, "Order: <code>%s</code>", o.ID)
	return b.String()
}

func installmentReminderMessage(o *model.Order, p *model.Product, u *model.User, due decimal.Decimal, currency string, daysOverdue int) string {
	var b strings.Builder
	b.WriteString("⚠️ <b>Installment Payment Overdue!</b>\n\n")
	fmt.Fprintf(&b, "Product: %s\n", html.EscapeString(productName(p)))
	fmt.Fprintf(&b, "Customer: %s\n", html.EscapeString(u.DisplayName()))
	if u != nil && u.Username != "" {
		fmt.Fprintf(&b, "Username: @%s\n", html.EscapeString(u.Username))
	}
	fmt.Fprintf(&b, "Amount due: %s\n", money(due, currency))
	fmt.Fprintf(&b, "Remaining: %s\n", money(o.Remaining(), currency))
	fmt.Fprintf(&b, "Order: <code>%s</code>\n", o.ID)
	fmt.Fprintf(&b, "Days overdue: %d", daysOverdue)
	return b.String()
}

func refundMessage(pay *model.Payment, o *model.Order, refund model.Refund) string {
	var b strings.Builder
	b.WriteString("↩️ <b>Refund Issued</b>\n\n")
	fmt.Fprintf(&b, "Amount: %s\n", money(refund.Amount, pay.Currency))
	fmt.Fprintf(&b, "Refund status: %s\n", html.EscapeString(refund.Status))
	fmt.Fprintf(&b, "Payment: <code>%s</code>\n", pay.ID)
	fmt.Fprintf(&b, "Order: <code>%s</code> (%s)", o.ID, o.Status)
	return b.String()
}
