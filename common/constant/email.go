package constant

const EmailTransactionCreatedTemplate = `
Dear %s,

Thank you for your order! Your transaction has been successfully created.

Transaction Details:
------------------------------------------
Transaction ID: %s
Event: %s
Total Amount: %s
------------------------------------------

Please upload your payment proof before: %s

Payment Instructions:
1. Transfer the total amount to the organizer's account
2. Upload your payment proof from the transaction page within the time limit
3. You will receive a confirmation email once the organizer reviews your payment

If you have any questions or need assistance, please contact our support team at support@ticket-marketplace.com.

Best regards,
Ticket Marketplace Team

Note: This is an automated message, please do not reply to this email.
`

const EmailTransactionAcceptedTemplate = `
Dear %s,

Great news! Your payment has been confirmed and your tickets are ready.

Transaction Details:
------------------------------------------
Transaction ID: %s
Event: %s
Total Amount: %s
Tickets Issued: %d
------------------------------------------

You can view your ticket codes on the transaction page. Please show them at the venue entrance.

Important Information:
- Please arrive at least 30 minutes before the event starts
- Valid ID may be required for entry
- No refunds or exchanges are permitted

We look forward to seeing you at the event!

Best regards,
Ticket Marketplace Team
`

const EmailTransactionRejectedTemplate = `
Dear %s,

We regret to inform you that your payment could not be confirmed and your transaction has been rejected.

Transaction Details:
------------------------------------------
Transaction ID: %s
Event: %s
Total Amount: %s
------------------------------------------

Your reserved seats have been released and any coupon, voucher, or points you used have been returned to your account.

If you believe this is a mistake, please contact our support team at support@ticket-marketplace.com.

Best regards,
Ticket Marketplace Team
`

const EmailTransactionExpiredTemplate = `
Dear %s,

Your transaction has expired because we did not receive your payment proof in time.

Transaction Details:
------------------------------------------
Transaction ID: %s
Event: %s
Total Amount: %s
------------------------------------------

Your reserved seats have been released. You can place a new order at any time while seats are still available.

Best regards,
Ticket Marketplace Team

Note: This is an automated message, please do not reply to this email.
`
