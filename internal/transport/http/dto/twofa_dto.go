package dto

type TwoFASendCodeRequest struct {
	Password string `json:"password"`
}

type TwoFAVerifyCodeRequest struct {
	Code string `json:"code"`
}

type TwoFAVerifyTOTPRequest struct {
	Code string `json:"code"`
}

type TwoFAStatusResponse struct {
	OK bool `json:"ok"`
}

type TwoFAEnrollResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
	QRDataURL  string `json:"qr_data_url"`
}
