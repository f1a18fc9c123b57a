// internal/suite/scenarios.go
package suite

import "github.com/xkilldash9x/rehydrate/internal/harness"

const newName = "John Doe"

// reactComponent is the behaviour every mounted component shares: it renders,
// and typing a name updates its greeting.
func reactComponent(feature string, setup []Step, selector string) []Scenario {
	return []Scenario{
		{
			Feature: feature,
			Name:    "renders " + selector,
			Driver:  DriverJS,
			Steps:   Steps(setup, HasCSS(selector)),
		},
		{
			Feature: feature,
			Name:    selector + " changes name in message according to input",
			Driver:  DriverJS,
			Steps:   Steps(setup, ChangeName(selector, newName)),
		},
	}
}

// sharedStore checks that two components backed by one store stay in sync.
func sharedStore(feature, path string) Scenario {
	first := "#ReduxSharedStoreApp-react-component-0"
	second := "#ReduxSharedStoreApp-react-component-1"
	return Scenario{
		Feature: feature,
		Name:    path + " typing in one component changes the other component",
		Driver:  DriverJS,
		Steps: Steps(
			Visit(path),
			CurrentPathIs(path),
			ChangeName(first, newName),
			HasTextWithin(harness.Within(second, "h3"), newName),
			Fill(harness.Within(second), "Jane Smith"),
			HasTextWithin(harness.Within(first, "h3"), "Jane Smith"),
		),
	}
}

// reactHelmet checks the title and markup a generator function renders. With
// scripts disabled only the server-rendered part is checked.
func reactHelmet(feature string, js bool) Scenario {
	steps := Steps(
		Visit("/react_helmet"),
		HasText(`Props: {"helloWorldData":{"name":"Mr. Server Side Rendering"}}`),
		HasCSS("title", harness.WithText(`\ACustom page title\z`), harness.IncludeHidden()),
		HTMLIncludes("[SERVER] RENDERED ReactHelmetApp to dom node with id"),
	)
	driver := DriverStatic
	name := "with disabled JS"
	if js {
		steps = append(steps, ChangeName("div#react-helmet-0", newName)...)
		driver = DriverJS
		name = "with enabled JS"
	}
	return Scenario{Feature: feature, Name: name + " renderedHtmls have no errors and set the page title", Driver: driver, Steps: steps}
}

// All returns the regression suite in declaration order.
func All() []Scenario {
	var all []Scenario

	// Pages/Index
	index := Steps(Visit("/"))
	for _, sel := range []string{
		"div#ReduxApp-react-component-0",
		"div#HelloWorld-react-component-1",
		"div#HelloWorldApp-react-component-2",
		"div#HelloWorldApp-react-component-3",
		"div#HelloWorld-react-component-5",
		"div#HelloWorldES5-react-component-5",
	} {
		all = append(all, reactComponent("Pages/Index all in one page", index, sel)...)
	}
	all = append(all, Scenario{
		Feature: "Pages/Index all in one page",
		Name:    "non-React component",
		Driver:  DriverJS,
		Steps:   Steps(index, HasText("Time to visit Maui")),
	})
	all = append(all, reactComponent("Pages/Index server rendering with options",
		Steps(Visit("/server_side_hello_world_with_options")), "div#my-hello-world-id")...)

	all = append(all,
		Scenario{
			Feature: "Turbolinks across pages",
			Name:    "changes name in message according to input",
			Driver:  DriverJS,
			Steps: Steps(
				Visit("/client_side_hello_world"),
				ChangeName("#HelloWorld-react-component-0", newName),
				ClickLink("Hello World Component Server Rendered, with extra options"),
				ChangeName("#my-hello-world-id", newName),
			),
		},
		Scenario{
			Feature:       "Pages/client_side_log_throw",
			Name:          "client side logging and error handling",
			Driver:        DriverJS,
			AllowJSErrors: []string{"HelloWorldWithLogAndThrow"},
			Steps: Steps(
				Visit("/client_side_log_throw"),
				HasText("This example demonstrates client side logging and error handling."),
			),
		},
		Scenario{
			Feature: "Pages/Pure Component",
			Driver:  DriverJS,
			Steps:   Steps(Visit("/pure_component"), HasText("This is a Pure Component!")),
		},
		Scenario{
			Feature:       "Pages/server_side_log_throw",
			Name:          "page has server side throw messages",
			Driver:        DriverJS,
			AllowJSErrors: []string{"HelloWorldWithLogAndThrow", `\[SERVER\]`},
			Steps: Steps(
				Visit("/server_side_log_throw"),
				HasText("This example demonstrates server side logging and error handling."),
				HasText("Exception in rendering!\n\nMessage: throw in HelloWorldWithLogAndThrow"),
			),
		},
		Scenario{
			Feature: "Pages/server_side_log_throw_raise",
			Name:    "redirects to the invoker and flashes an error",
			Driver:  DriverStatic,
			Steps: Steps(
				Visit("/server_side_log_throw_raise"),
				CurrentPathIs("/server_side_log_throw_raise_invoker"),
				NodeTextIs(".flash", "Error prerendering in react_on_rails. Redirected back to"+
					" '/server_side_log_throw_raise_invoker'. See server logs for output."),
			),
		},
	)

	all = append(all, reactComponent("Pages/Index after using the browser's back button",
		Steps(Visit("/"), Visit("/client_side_hello_world"), GoBack()), "div#ReduxApp-react-component-0")...)

	router := Steps(Visit("/"), ClickLink("React Router"))
	all = append(all,
		Scenario{
			Feature:       "React Router",
			Name:          "/react_router renders",
			Driver:        DriverJS,
			AllowJSErrors: []string{".*"},
			Steps:         Steps(router, HasText("Woohoo, we can use react-router here!")),
		},
		Scenario{
			Feature:       "React Router",
			Name:          "/react_router clicking links correctly renders other pages",
			Driver:        DriverJS,
			AllowJSErrors: []string{".*"},
			Steps: Steps(router,
				ClickLink("Router First Page"),
				CurrentPathIs("/react_router/first_page"),
				NodeTextIs("h2", "React Router First Page"),
				ClickLink("Router Second Page"),
				CurrentPathIs("/react_router/second_page"),
				NodeTextIs("h2", "React Router Second Page"),
			),
		},
		Scenario{
			Feature: "Manual Rendering",
			Name:    "renderer function is called successfully",
			Driver:  DriverJS,
			Steps: Steps(
				Visit("/client_side_manual_render"),
				NodeTextIs("h1", "Manual Render Example"),
				HasText("If you can see this, you can register renderer functions."),
			),
		},
		Scenario{
			Feature: "Code Splitting",
			Name:    "clicking on async route causes async component to be fetched",
			Driver:  DriverJS,
			Steps: Steps(
				Visit("/deferred_render_with_server_rendering"),
				NodeTextIs("h1", "Deferred Rendering"),
				HasNoText("Noice!"),
				ClickLink("Test Async Route"),
				CurrentPathIs("/deferred_render_with_server_rendering/async_page"),
				HasText("Noice!"),
			),
		},
		Scenario{
			Feature: "Code Splitting with rendering of async routes",
			Name:    "deferring the initial render prevents a checksum mismatch",
			Driver:  DriverJS,
			Steps: Steps(
				Visit("/deferred_render_with_server_rendering/async_page"),
				HasText("Mounted: true"),
			),
		},
		Scenario{
			Feature: "renderedHtml from generator function",
			Name:    "renderedHtml has no errors",
			Driver:  DriverJS,
			Steps: Steps(
				Visit("/rendered_html"),
				HasText(`Props: {"hello":"world"}`),
				HTMLIncludes("[SERVER] RENDERED RenderedHtml to dom node with id"),
			),
		},
		Scenario{
			Feature: "Manual client hydration",
			Name:    "HelloWorldRehydratable onChange triggers",
			Driver:  DriverJS,
			Steps: Steps(
				Visit("/xhr_refresh"),
				ClickButtonWithin(harness.Within("form"), "refresh"),
				Settle(),
				ChangeName("#HelloWorldRehydratable-react-component-1", "Should update"),
			),
		},
		Scenario{
			Feature:       "Prerendering error with hash result",
			Name:          "react_component returns a hash",
			Driver:        DriverJS,
			AllowJSErrors: []string{".*"},
			Steps:         Steps(Visit("/broken_app"), HTMLIncludes("Exception in rendering!")),
		},
		reactHelmet("Generator function returns renderedHtml with additional markup", false),
		reactHelmet("Generator function returns renderedHtml with additional markup", true),
		Scenario{
			Feature: "Display images",
			Name:    "image_example has no errors",
			Driver:  DriverJS,
			Steps: Steps(
				Visit("/image_example"),
				HasText("Here is a label with a background-image from the CSS modules imported"),
				HTMLIncludes("[SERVER] RENDERED ImageExample to dom node with id"),
			),
		},
	)

	for _, v := range []struct{ feature, path string }{
		{"2 react components, 1 store, client only", "/client_side_hello_world_shared_store"},
		{"2 react components, 1 store, server side", "/server_side_hello_world_shared_store"},
		{"2 react components, 1 store, client only, controller setup", "/client_side_hello_world_shared_store_controller"},
		{"2 react components, 1 store, server side, controller setup", "/server_side_hello_world_shared_store_controller"},
		{"2 react components, 1 store, client only, defer", "/client_side_hello_world_shared_store_defer"},
		{"2 react components, 1 store, server side, defer", "/server_side_hello_world_shared_store_defer"},
	} {
		all = append(all, sharedStore(v.feature, v.path))
	}
	return all
}
