package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CreateRequestMessage]        = (*CreateRequestCommand)(nil)
	_ gocmd.Commander[CancelRequestMessage]        = (*CancelRequestCommand)(nil)
	_ gocmd.Commander[SubmitOfferMessage]          = (*SubmitOfferCommand)(nil)
	_ gocmd.Commander[AcceptOfferMessage]          = (*AcceptOfferCommand)(nil)
	_ gocmd.Commander[WithdrawOfferMessage]        = (*WithdrawOfferCommand)(nil)
	_ gocmd.Commander[ExpireOfferMessage]          = (*ExpireOfferCommand)(nil)
	_ gocmd.Commander[TransitionMessage]           = (*TransitionCommand)(nil)
	_ gocmd.Commander[ValidateArrivalMessage]      = (*ValidateArrivalCommand)(nil)
	_ gocmd.Commander[ValidateCompletionMessage]   = (*ValidateCompletionCommand)(nil)
	_ gocmd.Commander[ConfirmAuthorizationMessage] = (*ConfirmAuthorizationCommand)(nil)
	_ gocmd.Commander[SubmitReviewMessage]         = (*SubmitReviewCommand)(nil)
	_ gocmd.Commander[ReportLocationMessage]       = (*ReportLocationCommand)(nil)
)
