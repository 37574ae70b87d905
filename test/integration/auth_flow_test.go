// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

//go:build integration

package integration

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

var _ = Describe("Account lifecycle", Ordered, func() {
	var env *testEnv

	BeforeAll(func() {
		var err error
		env, err = setupTestEnv()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if env != nil {
			env.cleanup()
		}
	})

	signup := func(name, email, password string) string {
		status, body, err := env.call(http.MethodPost, "/api/v1/users/signup", "", map[string]string{
			"name": name, "email": email, "password": password, "passwordConfirm": password,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body["status"]).To(Equal("success"))
		token, _ := body["token"].(string)
		Expect(token).NotTo(BeEmpty())
		return token
	}

	login := func(email, password string) (int, string) {
		status, body, err := env.call(http.MethodPost, "/api/v1/users/login", "", map[string]string{
			"email": email, "password": password,
		})
		Expect(err).NotTo(HaveOccurred())
		token, _ := body["token"].(string)
		return status, token
	}

	me := func(token string) (int, map[string]any) {
		status, body, err := env.call(http.MethodGet, "/api/v1/users/me", token, nil)
		Expect(err).NotTo(HaveOccurred())
		return status, body
	}

	Describe("signup and login", func() {
		It("issues a session that opens protected routes", func() {
			token := signup("Ada Walker", "ada@trailhead.test", "correct-horse")

			status, body := me(token)
			Expect(status).To(Equal(http.StatusOK))
			user := body["data"].(map[string]any)["user"].(map[string]any)
			Expect(user["email"]).To(Equal("ada@trailhead.test"))
			Expect(user["role"]).To(Equal("user"))
			Expect(user).NotTo(HaveKey("password"))
		})

		It("rejects a duplicate email regardless of case", func() {
			status, _, err := env.call(http.MethodPost, "/api/v1/users/signup", "", map[string]string{
				"name": "Ada Again", "email": "ADA@trailhead.test", "password": "correct-horse", "passwordConfirm": "correct-horse",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusConflict))
		})

		It("logs in with the right password only", func() {
			status, token := login("ada@trailhead.test", "correct-horse")
			Expect(status).To(Equal(http.StatusOK))
			Expect(token).NotTo(BeEmpty())

			status, _ = login("ada@trailhead.test", "wrong-horse")
			Expect(status).To(Equal(http.StatusUnauthorized))

			status, _ = login("nobody@trailhead.test", "correct-horse")
			Expect(status).To(Equal(http.StatusUnauthorized))
		})

		It("rejects requests without a credential", func() {
			status, body := me("")
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(body["status"]).To(Equal("fail"))
		})
	})

	Describe("password change", func() {
		It("invalidates tokens issued before the change", func() {
			_, oldToken := login("ada@trailhead.test", "correct-horse")

			// Tokens carry whole-second timestamps; the change must land in a later second.
			time.Sleep(2100 * time.Millisecond)

			status, body, err := env.call(http.MethodPatch, "/api/v1/users/updateMyPassword", oldToken, map[string]string{
				"passwordCurrent": "correct-horse", "password": "battery-staple", "passwordConfirm": "battery-staple",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			newToken, _ := body["token"].(string)
			Expect(newToken).NotTo(BeEmpty())

			status, _ = me(oldToken)
			Expect(status).To(Equal(http.StatusUnauthorized))

			status, _ = me(newToken)
			Expect(status).To(Equal(http.StatusOK))

			status, _ = login("ada@trailhead.test", "correct-horse")
			Expect(status).To(Equal(http.StatusUnauthorized))
		})

		It("refuses a wrong current password", func() {
			_, token := login("ada@trailhead.test", "battery-staple")

			status, _, err := env.call(http.MethodPatch, "/api/v1/users/updateMyPassword", token, map[string]string{
				"passwordCurrent": "guess", "password": "whatever-else", "passwordConfirm": "whatever-else",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("password reset", func() {
		It("resets once with the emailed secret", func() {
			signup("Ben Ridge", "ben@trailhead.test", "first-password")

			status, body, err := env.call(http.MethodPost, "/api/v1/users/forgotPassword", "", map[string]string{
				"email": "ben@trailhead.test",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["message"]).To(Equal("Token sent to email!"))

			secret := env.mail.lastResetSecret("ben@trailhead.test")
			Expect(secret).NotTo(BeEmpty())

			reset := map[string]string{"password": "second-password", "passwordConfirm": "second-password"}
			status, body, err = env.call(http.MethodPatch, "/api/v1/users/resetPassword/"+secret, "", reset)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["token"]).NotTo(BeEmpty())

			status, _, err = env.call(http.MethodPatch, "/api/v1/users/resetPassword/"+secret, "", reset)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusBadRequest))

			status, _ = login("ben@trailhead.test", "second-password")
			Expect(status).To(Equal(http.StatusOK))
		})

		It("only honours the newest secret", func() {
			for range 2 {
				status, _, err := env.call(http.MethodPost, "/api/v1/users/forgotPassword", "", map[string]string{
					"email": "ben@trailhead.test",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(status).To(Equal(http.StatusOK))
			}
			env.mail.mu.Lock()
			var secrets []string
			for _, m := range env.mail.sent {
				if match := resetLink.FindStringSubmatch(m.Body); m.To == "ben@trailhead.test" && match != nil {
					secrets = append(secrets, match[1])
				}
			}
			env.mail.mu.Unlock()
			Expect(len(secrets)).To(BeNumerically(">=", 2))
			stale := secrets[len(secrets)-2]

			status, _, err := env.call(http.MethodPatch, "/api/v1/users/resetPassword/"+stale, "", map[string]string{
				"password": "third-password", "passwordConfirm": "third-password",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("profile update", func() {
		It("changes name and email but keeps them unique", func() {
			token := signup("Dee Ridge", "dee@trailhead.test", "dee-password")

			status, body, err := env.call(http.MethodPatch, "/api/v1/users/updateMe", token, map[string]string{
				"name": "Dee R.", "email": "Dee.Ridge@Trailhead.test",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			user := body["data"].(map[string]any)["user"].(map[string]any)
			Expect(user["name"]).To(Equal("Dee R."))
			Expect(user["email"]).To(Equal("dee.ridge@trailhead.test"))

			status, _ = login("dee.ridge@trailhead.test", "dee-password")
			Expect(status).To(Equal(http.StatusOK))

			status, _, err = env.call(http.MethodPatch, "/api/v1/users/updateMe", token, map[string]string{
				"email": "ada@trailhead.test",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusConflict))

			status, _, err = env.call(http.MethodPatch, "/api/v1/users/updateMe", token, map[string]string{
				"password": "sneaky-password",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("deactivation", func() {
		It("locks the account out", func() {
			token := signup("Cal Summit", "cal@trailhead.test", "cal-password")

			status, _, err := env.call(http.MethodDelete, "/api/v1/users/deleteMe", token, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusNoContent))

			status, _ = me(token)
			Expect(status).To(Equal(http.StatusUnauthorized))

			status, _ = login("cal@trailhead.test", "cal-password")
			Expect(status).To(Equal(http.StatusUnauthorized))
		})
	})
})
