package extract

const contactSystemPrompt = `You extract contact details from a text message sent to a personal CRM.
Return a JSON object with exactly these keys:
  "action": one of "add", "update", "delete" ("add" unless the message clearly edits or removes an existing contact),
  "name": full name of the contact the message is about,
  "phone": phone number as written,
  "email": email address,
  "birthday": birthday as written or as YYYY-MM-DD,
  "family_members": family members mentioned (spouse, children...), as one string,
  "description": anything else worth remembering about the person, as one string.
Use null for every key the message does not mention. Never invent values.`

const interactionSystemPrompt = `You read a text message in which the user logs an interaction they had with someone.
Return a JSON object with exactly these keys:
  "contact_name": the name of the person the user interacted with,
  "note": a short note of what happened or was discussed, written from the user's point of view.
Use null for a key you cannot determine.`

const contactNameSystemPrompt = `You read a question about the user's contacts, for example "what's Sarah's phone number" or "find John".
Return a JSON object with exactly one key:
  "name": the (partial) name of the contact being asked about, or null if no name is given.`

const querySystemPrompt = `You are a query planning assistant. The user wants to retrieve logged interactions with their contacts.
Today is %s.
Return a JSON object with exactly these keys: "contact_name", "start_date", "end_date", "limit", "sort".
Rules:
- Use null for anything the user does not specify.
- "last 3 discussions" means limit=3 and sort="desc"; "last interaction" means limit=1 and sort="desc".
- Dates are YYYY-MM-DD. If only a month or a year is mentioned, cover the whole period.
- sort is "asc" or "desc".
Example: "Tell me about my last 2 chats with Alice from July 2024" =>
{"contact_name": "Alice", "start_date": "2024-07-01", "end_date": "2024-07-31", "limit": 2, "sort": "desc"}`
