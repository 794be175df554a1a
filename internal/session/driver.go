package session

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// scrollStep is the wheel delta synthesized for one scroll(up|down) action.
const scrollStep = 600

// pageDriver adapts a live Playwright page to the Driver interface.
type pageDriver struct {
	page playwright.Page
}

func (d *pageDriver) Navigate(url string, timeout time.Duration) error {
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	return err
}

func (d *pageDriver) Click(selector string, timeout time.Duration) error {
	return d.page.Locator(selector).Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

// Drag presses at the start point and releases at the end point with
// intermediate move steps so map-style drag handlers see a natural gesture.
func (d *pageDriver) Drag(fromX, fromY, toX, toY float64) error {
	mouse := d.page.Mouse()
	if err := mouse.Move(fromX, fromY); err != nil {
		return err
	}
	if err := mouse.Down(); err != nil {
		return err
	}
	if err := mouse.Move(toX, toY, playwright.MouseMoveOptions{Steps: playwright.Int(20)}); err != nil {
		// Release the button even when the move failed, otherwise the page
		// is left mid-drag for every following action.
		_ = mouse.Up()
		return err
	}
	return mouse.Up()
}

func (d *pageDriver) Scroll(direction string) error {
	delta := float64(scrollStep)
	if direction == "up" {
		delta = -delta
	}
	return d.page.Mouse().Wheel(0, delta)
}

func (d *pageDriver) Wheel(delta float64) error {
	return d.page.Mouse().Wheel(0, delta)
}

var _ Driver = (*pageDriver)(nil)

// InstallBrowsers downloads the Chromium runtime if it is not present.
// Safe to call on every start; a cached install is a no-op.
func InstallBrowsers() error {
	err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
	if err != nil {
		return fmt.Errorf("playwright install: %w", err)
	}
	return nil
}
