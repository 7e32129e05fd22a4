package acceptance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prperemyshlev/auth-engine/internal/dto"
	"github.com/prperemyshlev/auth-engine/internal/service"
)

const testPassword = "Password123!"

func (s *Suite) register(email, password string) *http.Response {
	reqBody := dto.RegisterRequest{
		Email:    email,
		Password: password,
	}
	body, _ := json.Marshal(reqBody)

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/register",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	return resp
}

func (s *Suite) login(email, password string) *http.Response {
	reqBody := dto.LoginRequest{
		Email:    email,
		Password: password,
	}
	body, _ := json.Marshal(reqBody)

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/login",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	return resp
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == service.SessionCookieName {
			return c
		}
	}
	return nil
}

func (s *Suite) TestRegister_Success() {
	resp := s.register("test@example.com", testPassword)
	defer resp.Body.Close()

	s.Equal(http.StatusCreated, resp.StatusCode)

	var authResp dto.AuthResponse
	err := json.NewDecoder(resp.Body).Decode(&authResp)
	s.Require().NoError(err)

	s.NotEmpty(authResp.SessionToken)
	s.NotEmpty(authResp.ExpiresAt)
	s.Equal("test@example.com", authResp.User.Email)
	s.NotEmpty(authResp.User.ID)

	cookie := sessionCookie(resp)
	s.Require().NotNil(cookie, "Should have session cookie")
	s.True(cookie.HttpOnly)
	s.Equal(authResp.SessionToken, cookie.Value)
}

func (s *Suite) TestRegister_DuplicateEmail() {
	resp1 := s.register("duplicate@example.com", testPassword)
	resp1.Body.Close()

	resp2 := s.register("duplicate@example.com", testPassword)
	defer resp2.Body.Close()

	s.Equal(http.StatusConflict, resp2.StatusCode)

	var errResp dto.ErrorResponse
	json.NewDecoder(resp2.Body).Decode(&errResp)
	s.Equal("Conflict", errResp.Error)
}

func (s *Suite) TestRegister_InvalidEmail() {
	resp := s.register("invalid-email", testPassword)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestRegister_WeakPassword() {
	// Long enough but no special character.
	resp := s.register("weak@example.com", "Password123")
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestLogin_Success() {
	registerResp := s.register("login@example.com", testPassword)
	registerResp.Body.Close()
	s.Equal(http.StatusCreated, registerResp.StatusCode, "Registration should succeed")

	resp := s.login("login@example.com", testPassword)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var authResp dto.AuthResponse
	err := json.NewDecoder(resp.Body).Decode(&authResp)
	s.Require().NoError(err)

	s.NotEmpty(authResp.SessionToken)
	s.Equal("login@example.com", authResp.User.Email)

	s.NotNil(sessionCookie(resp), "Should have session cookie")
}

func (s *Suite) TestLogin_InvalidCredentials() {
	resp := s.login("nonexistent@example.com", "WrongPassword1!")
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	var errResp dto.ErrorResponse
	json.NewDecoder(resp.Body).Decode(&errResp)
	s.Equal("Unauthorized", errResp.Error)
}

func (s *Suite) TestLogin_WrongPassword() {
	registerResp := s.register("wrongpass@example.com", testPassword)
	registerResp.Body.Close()

	resp := s.login("wrongpass@example.com", "WrongPassword1!")
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestGetMe_Success() {
	registerResp := s.register("getme@example.com", testPassword)
	defer registerResp.Body.Close()

	var authResp dto.AuthResponse
	json.NewDecoder(registerResp.Body).Decode(&authResp)

	req, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/auth/me", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", authResp.SessionToken))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var userResp dto.UserResponse
	err = json.NewDecoder(resp.Body).Decode(&userResp)
	s.Require().NoError(err)
	s.Equal("getme@example.com", userResp.Email)
}

func (s *Suite) TestGetMe_NoToken() {
	req, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/auth/me", nil)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestGetMe_WithCookie() {
	registerResp := s.register("cookie@example.com", testPassword)
	registerResp.Body.Close()

	cookie := sessionCookie(registerResp)
	s.Require().NotNil(cookie)

	req, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/auth/me", nil)
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestLogout_Success() {
	registerResp := s.register("logout@example.com", testPassword)
	defer registerResp.Body.Close()

	var authResp dto.AuthResponse
	json.NewDecoder(registerResp.Body).Decode(&authResp)

	req, _ := http.NewRequest("POST", s.BaseURL+"/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", authResp.SessionToken))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var successResp dto.SuccessResponse
	json.NewDecoder(resp.Body).Decode(&successResp)
	s.Equal("Logged out successfully", successResp.Message)

	cookie := sessionCookie(resp)
	s.Require().NotNil(cookie, "Logout should clear the cookie")
	s.Empty(cookie.Value)

	// The revoked session no longer resolves.
	meReq, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/auth/me", nil)
	meReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", authResp.SessionToken))
	meResp, err := http.DefaultClient.Do(meReq)
	s.Require().NoError(err)
	defer meResp.Body.Close()
	s.Equal(http.StatusUnauthorized, meResp.StatusCode)
}

func (s *Suite) TestLogout_NoToken() {
	// Logout without a session is a no-op, not an error.
	req, _ := http.NewRequest("POST", s.BaseURL+"/api/v1/auth/logout", nil)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestChangePassword() {
	registerResp := s.register("changepass@example.com", testPassword)
	defer registerResp.Body.Close()

	var authResp dto.AuthResponse
	json.NewDecoder(registerResp.Body).Decode(&authResp)

	changeReq := dto.ChangePasswordRequest{
		OldPassword: testPassword,
		NewPassword: "NewPassword456!",
	}
	body, _ := json.Marshal(changeReq)

	req, _ := http.NewRequest("PUT", s.BaseURL+"/api/v1/auth/password", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", authResp.SessionToken))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	// The old password stops working, the new one signs in.
	oldResp := s.login("changepass@example.com", testPassword)
	oldResp.Body.Close()
	s.Equal(http.StatusUnauthorized, oldResp.StatusCode)

	newResp := s.login("changepass@example.com", "NewPassword456!")
	newResp.Body.Close()
	s.Equal(http.StatusOK, newResp.StatusCode)
}

func (s *Suite) TestPasswordResetRequest_UnknownEmail() {
	resetReq := dto.ResetRequestRequest{Email: "ghost@example.com"}
	body, _ := json.Marshal(resetReq)

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/password/reset",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()

	// Identical response whether or not the account exists.
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestPasswordResetConfirm_InvalidToken() {
	confirmReq := dto.ResetConfirmRequest{
		Email:       "someone@example.com",
		Token:       "not-a-real-token",
		NewPassword: "NewPassword456!",
	}
	body, _ := json.Marshal(confirmReq)

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/password/reset/confirm",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestOAuthProviders() {
	resp, err := http.Get(s.BaseURL + "/api/v1/auth/oauth/providers")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var providers dto.ProvidersResponse
	err = json.NewDecoder(resp.Body).Decode(&providers)
	s.Require().NoError(err)
	s.Empty(providers.Providers, "No providers configured in the test app")
}

func (s *Suite) TestOAuthAuthorize_UnknownProvider() {
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(s.BaseURL + "/api/v1/auth/oauth/gitlab")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestCompleteFlow() {
	email := "complete@example.com"

	registerResp := s.register(email, testPassword)
	defer registerResp.Body.Close()
	s.Equal(http.StatusCreated, registerResp.StatusCode)

	var authResp dto.AuthResponse
	json.NewDecoder(registerResp.Body).Decode(&authResp)
	token := authResp.SessionToken

	meReq, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/auth/me", nil)
	meReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	meResp, err := http.DefaultClient.Do(meReq)
	s.Require().NoError(err)
	defer meResp.Body.Close()
	s.Equal(http.StatusOK, meResp.StatusCode)

	logoutReq, _ := http.NewRequest("POST", s.BaseURL+"/api/v1/auth/logout", nil)
	logoutReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	logoutResp, err := http.DefaultClient.Do(logoutReq)
	s.Require().NoError(err)
	defer logoutResp.Body.Close()
	s.Equal(http.StatusOK, logoutResp.StatusCode)

	meReq2, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/auth/me", nil)
	meReq2.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	meResp2, err := http.DefaultClient.Do(meReq2)
	s.Require().NoError(err)
	defer meResp2.Body.Close()
	s.Equal(http.StatusUnauthorized, meResp2.StatusCode)
}
